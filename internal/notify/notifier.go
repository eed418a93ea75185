// Package notify tells customers when their order changes status.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/messaging"
)

type Message struct {
	OrderID string
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type OrdersReader interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type Notifier struct {
	orders OrdersReader
	sender Sender
	logger *slog.Logger
}

func NewNotifier(orders OrdersReader, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		orders: orders,
		sender: sender,
		logger: logger,
	}
}

// Handle processes one order.status payload. Statuses the customer does not
// hear about are skipped.
func (n *Notifier) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order status event: %w: %w", messaging.ErrPoison, err)
	}

	subject, ok := subjects[event.To]
	if !ok {
		n.logger.Debug("no notification for status", "order_id", event.OrderID, "status", event.To)
		return nil
	}

	order, err := n.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("order %s: %w: %w", event.OrderID, messaging.ErrPoison, err)
		}
		return fmt.Errorf("get order: %w", err)
	}

	if order.CustomerPhone == "" {
		n.logger.Info("order has no contact, skipping notification", "order_id", order.ID)
		return nil
	}

	msg := Message{
		OrderID: order.ID,
		To:      order.CustomerPhone,
		Subject: subject,
		Body:    body(*order, event.To),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	n.logger.Info("customer notified", "order_id", order.ID, "status", event.To)
	return nil
}

var subjects = map[domain.OrderStatus]string{
	domain.OrderStatusPending:        "Order received",
	domain.OrderStatusPreparing:      "Your order is being prepared",
	domain.OrderStatusOutForDelivery: "Your order is on its way",
	domain.OrderStatusDelivered:      "Your order was delivered",
	domain.OrderStatusCancelled:      "Your order was cancelled",
}

func body(o domain.Order, status domain.OrderStatus) string {
	name := o.CustomerName
	if name == "" {
		name = "there"
	}

	switch status {
	case domain.OrderStatusPending:
		return fmt.Sprintf("Hi %s, we received order %s for %s.", name, o.ID, o.TotalAmount.StringFixed(2))
	case domain.OrderStatusPreparing:
		return fmt.Sprintf("Hi %s, the restaurant started preparing order %s.", name, o.ID)
	case domain.OrderStatusOutForDelivery:
		return fmt.Sprintf("Hi %s, a courier picked up order %s and is heading to %s.", name, o.ID, o.DeliveryAddress)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("Hi %s, order %s was delivered. Enjoy your meal!", name, o.ID)
	case domain.OrderStatusCancelled:
		return fmt.Sprintf("Hi %s, order %s was cancelled.", name, o.ID)
	}
	return ""
}

// LogSender writes notifications to the log after a short simulated
// provider delay.
type LogSender struct {
	logger *slog.Logger
	delay  func() time.Duration
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{
		logger: logger,
		delay:  func() time.Duration { return time.Duration(50+rand.Intn(151)) * time.Millisecond },
	}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	select {
	case <-time.After(s.delay()):
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("notification sent", "order_id", msg.OrderID, "to", msg.To, "subject", msg.Subject)
	return nil
}
