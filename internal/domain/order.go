package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// OrderStatuses returns every order status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func (s OrderStatus) Valid() bool {
	for _, v := range orderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// NeedsCourier reports whether an order in this status must have a live
// delivery: it is waiting at the restaurant or already on its way.
func (s OrderStatus) NeedsCourier() bool {
	return s == OrderStatusReadyForPickup || s == OrderStatusOutForDelivery
}

func (s *OrderStatus) UnmarshalText(b []byte) error {
	v := OrderStatus(b)
	if !v.Valid() {
		return fmt.Errorf("unknown order status %q", string(b))
	}
	*s = v
	return nil
}

type Actor string

const (
	ActorCustomer   Actor = "customer"
	ActorRestaurant Actor = "restaurant"
	ActorCourier    Actor = "courier"
)

type orderEdge struct {
	to     OrderStatus
	actors []Actor
}

// orderTransitions is the complete order lifecycle graph. Anything not listed
// here is illegal.
var orderTransitions = map[OrderStatus][]orderEdge{
	OrderStatusPending: {
		{to: OrderStatusPreparing, actors: []Actor{ActorRestaurant}},
		{to: OrderStatusCancelled, actors: []Actor{ActorRestaurant, ActorCustomer}},
	},
	OrderStatusPreparing: {
		{to: OrderStatusReadyForPickup, actors: []Actor{ActorRestaurant}},
	},
	OrderStatusReadyForPickup: {
		{to: OrderStatusOutForDelivery, actors: []Actor{ActorCourier}},
	},
	OrderStatusOutForDelivery: {
		{to: OrderStatusDelivered, actors: []Actor{ActorCourier}},
	},
}

func CanTransition(from, to OrderStatus) bool {
	for _, e := range orderTransitions[from] {
		if e.to == to {
			return true
		}
	}
	return false
}

// CanPerform reports whether actor may move an order from one status to another.
func CanPerform(actor Actor, from, to OrderStatus) bool {
	for _, e := range orderTransitions[from] {
		if e.to != to {
			continue
		}
		for _, a := range e.actors {
			if a == actor {
				return true
			}
		}
	}
	return false
}

// NextOrderStatuses lists the statuses reachable in one step by actor.
func NextOrderStatuses(actor Actor, from OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, e := range orderTransitions[from] {
		if CanPerform(actor, from, e.to) {
			out = append(out, e.to)
		}
	}
	return out
}

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodCash
}

type OrderItem struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type Customer struct {
	ID    string `json:"customer_id,omitempty"`
	Name  string `json:"customer_name"`
	Phone string `json:"customer_phone"`
}

type Order struct {
	ID                  string          `json:"id"`
	RestaurantID        string          `json:"restaurant_id"`
	CustomerID          string          `json:"customer_id,omitempty"`
	CustomerName        string          `json:"customer_name"`
	CustomerPhone       string          `json:"customer_phone"`
	Items               []OrderItem     `json:"items"`
	DeliveryAddress     string          `json:"delivery_address"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	PaymentMethod       PaymentMethod   `json:"payment_method"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	Status              OrderStatus     `json:"status"`
	IsPaid              bool            `json:"is_paid"`
	PaymentID           string          `json:"payment_id,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	DeliveredAt         *time.Time      `json:"delivered_at,omitempty"`
}

// DeliveryRequest copies what a courier needs to know about o.
func (o Order) DeliveryRequest() CreateDeliveryRequest {
	return CreateDeliveryRequest{
		OrderID:         o.ID,
		RestaurantID:    o.RestaurantID,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		Notes:           o.SpecialInstructions,
	}
}

type CreateOrderRequest struct {
	RestaurantID        string          `json:"restaurant_id"`
	CustomerID          string          `json:"customer_id,omitempty"`
	CustomerName        string          `json:"customer_name"`
	CustomerPhone       string          `json:"customer_phone"`
	Items               []OrderItem     `json:"items"`
	DeliveryAddress     string          `json:"delivery_address"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	PaymentMethod       PaymentMethod   `json:"payment_method"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
}

// StatusUpdate is a guarded transition request. ExpectedVersion of zero
// skips the version comparison.
type StatusUpdate struct {
	Status          OrderStatus `json:"status"`
	ExpectedStatus  OrderStatus `json:"expected_status"`
	ExpectedVersion int64       `json:"expected_version,omitempty"`
}

type PaymentRecord struct {
	PaymentID string `json:"payment_id"`
	Paid      bool   `json:"paid"`
}

type OrderFilter struct {
	RestaurantID string
	CustomerID   string
	Status       OrderStatus
}
