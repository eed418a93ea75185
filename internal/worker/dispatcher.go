// Package worker reacts to order status events. When a restaurant marks an
// order ready for pickup it opens the delivery couriers can accept.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/messaging"
)

type OrdersReader interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}

type DeliveriesAPI interface {
	CreateDelivery(ctx context.Context, req domain.CreateDeliveryRequest) (*domain.Delivery, error)
	ListDeliveries(ctx context.Context) ([]domain.Delivery, error)
}

type Dispatcher struct {
	orders     OrdersReader
	deliveries DeliveriesAPI
	logger     *slog.Logger
}

func NewDispatcher(orders OrdersReader, deliveries DeliveriesAPI, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		orders:     orders,
		deliveries: deliveries,
		logger:     logger,
	}
}

// Handle processes one order.status payload. Redelivered events are safe: a
// delivery that already exists for the order counts as done.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order status event: %w: %w", messaging.ErrPoison, err)
	}

	if event.To != domain.OrderStatusReadyForPickup {
		d.logger.Debug("ignoring order status event", "order_id", event.OrderID, "status", event.To)
		return nil
	}

	d.logger.Info("processing ready order", "order_id", event.OrderID, "restaurant_id", event.RestaurantID)

	order, err := d.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("order %s: %w: %w", event.OrderID, messaging.ErrPoison, err)
		}
		return fmt.Errorf("get order: %w", err)
	}

	if order.Status != domain.OrderStatusReadyForPickup {
		d.logger.Info("order moved on before dispatch", "order_id", order.ID, "status", order.Status)
		return nil
	}

	_, err = d.open(ctx, *order)
	return err
}

// Sweep opens a delivery for every order that needs a courier and has none
// holding it. This covers status events that were never published and
// deliveries cancelled without a replacement. It returns how many deliveries
// it opened.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	deliveries, err := d.deliveries.ListDeliveries(ctx)
	if err != nil {
		return 0, fmt.Errorf("list deliveries: %w", err)
	}
	held := make(map[string]bool, len(deliveries))
	for _, dl := range deliveries {
		if dl.Status.HoldsOrder() {
			held[dl.OrderID] = true
		}
	}

	opened := 0
	var errs []error
	for _, status := range domain.OrderStatuses() {
		if !status.NeedsCourier() {
			continue
		}
		orders, err := d.orders.ListOrders(ctx, domain.OrderFilter{Status: status})
		if err != nil {
			return opened, fmt.Errorf("list %s orders: %w", status, err)
		}
		for _, o := range orders {
			if held[o.ID] {
				continue
			}
			created, err := d.open(ctx, o)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if created {
				opened++
			}
		}
	}

	if opened > 0 {
		d.logger.Warn("sweep opened missing deliveries", "count", opened)
	}
	return opened, errors.Join(errs...)
}

// open creates the delivery for order. It reports false when another
// delivery already holds the order.
func (d *Dispatcher) open(ctx context.Context, order domain.Order) (bool, error) {
	delivery, err := d.deliveries.CreateDelivery(ctx, order.DeliveryRequest())
	switch {
	case errors.Is(err, domain.ErrConflict):
		d.logger.Info("delivery already exists", "order_id", order.ID)
		return false, nil
	case errors.Is(err, domain.ErrValidation):
		return false, fmt.Errorf("create delivery for %s: %w: %w", order.ID, messaging.ErrPoison, err)
	case err != nil:
		return false, fmt.Errorf("create delivery for %s: %w", order.ID, err)
	}

	d.logger.Info("delivery opened", "order_id", order.ID, "delivery_id", delivery.ID, "order_status", order.Status)
	return true, nil
}

// RunSweeps calls Sweep every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (d *Dispatcher) RunSweeps(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.Sweep(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("dispatch sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
