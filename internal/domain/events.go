package domain

import "time"

const OrderStatusTopic = "order.status"

// OrderStatusEvent is published on every order creation and status change.
// From is empty for creation.
type OrderStatusEvent struct {
	OrderID      string      `json:"order_id"`
	RestaurantID string      `json:"restaurant_id"`
	From         OrderStatus `json:"from,omitempty"`
	To           OrderStatus `json:"to"`
	Version      int64       `json:"version"`
	Timestamp    time.Time   `json:"timestamp"`
}

func (OrderStatusEvent) EventType() string { return "order.status.changed" }
