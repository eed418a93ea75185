package domain

import (
	"fmt"
	"time"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusAssigned  DeliveryStatus = "ASSIGNED"
	DeliveryStatusPickedUp  DeliveryStatus = "PICKED_UP"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusCancelled DeliveryStatus = "CANCELLED"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusAssigned, DeliveryStatusPickedUp,
		DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	}
	return false
}

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// HoldsOrder reports whether a delivery in this status still owns its order.
// Only a cancelled delivery frees the order for a replacement.
func (s DeliveryStatus) HoldsOrder() bool {
	return s.Valid() && s != DeliveryStatusCancelled
}

func (s *DeliveryStatus) UnmarshalText(b []byte) error {
	v := DeliveryStatus(b)
	if !v.Valid() {
		return fmt.Errorf("unknown delivery status %q", string(b))
	}
	*s = v
	return nil
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:  {DeliveryStatusAssigned, DeliveryStatusCancelled},
	DeliveryStatusAssigned: {DeliveryStatusPickedUp, DeliveryStatusCancelled},
	DeliveryStatusPickedUp: {DeliveryStatusDelivered, DeliveryStatusCancelled},
}

func CanTransitionDelivery(from, to DeliveryStatus) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type DeliveryAction struct {
	Next  DeliveryStatus
	Label string
}

var nextDeliveryActions = map[DeliveryStatus]DeliveryAction{
	DeliveryStatusAssigned: {Next: DeliveryStatusPickedUp, Label: "Confirm Pickup"},
	DeliveryStatusPickedUp: {Next: DeliveryStatusDelivered, Label: "Confirm Delivery"},
}

// NextDeliveryAction returns the single forward action offered to the courier.
func NextDeliveryAction(s DeliveryStatus) (DeliveryAction, bool) {
	a, ok := nextDeliveryActions[s]
	return a, ok
}

// LinkedOrderStatus is the order status a delivery status forces on its order.
func LinkedOrderStatus(s DeliveryStatus) (OrderStatus, bool) {
	switch s {
	case DeliveryStatusPickedUp:
		return OrderStatusOutForDelivery, true
	case DeliveryStatusDelivered:
		return OrderStatusDelivered, true
	}
	return "", false
}

type Delivery struct {
	ID              string         `json:"id"`
	OrderID         string         `json:"order_id"`
	DriverID        string         `json:"driver_id,omitempty"`
	Status          DeliveryStatus `json:"status"`
	RestaurantID    string         `json:"restaurant_id"`
	CustomerName    string         `json:"customer_name"`
	CustomerPhone   string         `json:"customer_phone"`
	DeliveryAddress string         `json:"delivery_address"`
	Notes           string         `json:"notes,omitempty"`
	Version         int64          `json:"version"`
	AssignedAt      *time.Time     `json:"assigned_at,omitempty"`
	PickedUpAt      *time.Time     `json:"picked_up_at,omitempty"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type CreateDeliveryRequest struct {
	OrderID         string `json:"order_id"`
	RestaurantID    string `json:"restaurant_id"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	DeliveryAddress string `json:"delivery_address"`
	Notes           string `json:"notes,omitempty"`
}

// Reopen is the request for a replacement of d, carrying the same order,
// restaurant and customer details.
func (d Delivery) Reopen() CreateDeliveryRequest {
	return CreateDeliveryRequest{
		OrderID:         d.OrderID,
		RestaurantID:    d.RestaurantID,
		CustomerName:    d.CustomerName,
		CustomerPhone:   d.CustomerPhone,
		DeliveryAddress: d.DeliveryAddress,
		Notes:           d.Notes,
	}
}

type DeliveryStatusUpdate struct {
	Status         DeliveryStatus `json:"status"`
	ExpectedStatus DeliveryStatus `json:"expected_status"`
	PickedUpAt     *time.Time     `json:"picked_up_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
}

type AssignRequest struct {
	DriverID string `json:"driver_id"`
}
