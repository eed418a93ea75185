// Package clienttest provides an in-memory stand-in for the remote order,
// delivery and payment services with the same guard semantics.
package clienttest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/foodflow/internal/client"
	"github.com/joao-fontenele/foodflow/internal/domain"
)

type Fake struct {
	mu         sync.Mutex
	orders     map[string]*domain.Order
	deliveries map[string]*domain.Delivery
	order      []string

	// PaymentErr, when set, is returned by CreatePaymentIntent.
	PaymentErr error
	// CreateOrderErr, when set, is returned by CreateOrder.
	CreateOrderErr error
	// CreateDeliveryErr, when set, is returned by CreateDelivery.
	CreateDeliveryErr error
	// OrderUpdateFailures makes the next n UpdateOrderStatus calls fail with
	// a transient error before touching state.
	OrderUpdateFailures int

	OrderUpdates int
	Payments     int
}

func New() *Fake {
	return &Fake{
		orders:     map[string]*domain.Order{},
		deliveries: map[string]*domain.Delivery{},
	}
}

func (f *Fake) CreateOrder(_ context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateOrderErr != nil {
		return nil, f.CreateOrderErr
	}

	now := time.Now().UTC()
	o := &domain.Order{
		ID:                  uuid.NewString(),
		RestaurantID:        req.RestaurantID,
		CustomerID:          req.CustomerID,
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		Items:               slices.Clone(req.Items),
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		PaymentMethod:       req.PaymentMethod,
		TotalAmount:         req.TotalAmount,
		Status:              domain.OrderStatusPending,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	f.orders[o.ID] = o
	f.order = append(f.order, o.ID)
	return cloneOrder(o), nil
}

// PutOrder seeds an order directly.
func (f *Fake) PutOrder(o domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[o.ID]; !ok {
		f.order = append(f.order, o.ID)
	}
	f.orders[o.ID] = cloneOrder(&o)
}

func (f *Fake) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("get order: %w", domain.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (f *Fake) ListOrders(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, id := range f.order {
		o := f.orders[id]
		if filter.RestaurantID != "" && o.RestaurantID != filter.RestaurantID {
			continue
		}
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (f *Fake) UpdateOrderStatus(_ context.Context, id string, update domain.StatusUpdate) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OrderUpdateFailures > 0 {
		f.OrderUpdateFailures--
		return nil, &client.TransientError{Op: "update order status", Status: 503, Err: fmt.Errorf("unavailable")}
	}

	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("update order status: %w", domain.ErrNotFound)
	}
	if o.Status != update.ExpectedStatus ||
		(update.ExpectedVersion != 0 && o.Version != update.ExpectedVersion) ||
		!domain.CanTransition(o.Status, update.Status) {
		return nil, &client.ConflictError{Op: "update order status", Message: "order is not in the expected state", Order: cloneOrder(o)}
	}

	now := time.Now().UTC()
	o.Status = update.Status
	o.Version++
	o.UpdatedAt = now
	if o.Status == domain.OrderStatusDelivered {
		o.DeliveredAt = &now
	}
	f.OrderUpdates++
	return cloneOrder(o), nil
}

func (f *Fake) RecordPayment(_ context.Context, id string, record domain.PaymentRecord) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("record payment: %w", domain.ErrNotFound)
	}
	o.PaymentID = record.PaymentID
	o.IsPaid = record.Paid
	return cloneOrder(o), nil
}

func (f *Fake) CreatePaymentIntent(_ context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Payments++
	if f.PaymentErr != nil {
		return nil, f.PaymentErr
	}
	return &domain.PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "requires_payment_method",
	}, nil
}

func (f *Fake) CreateDelivery(_ context.Context, req domain.CreateDeliveryRequest) (*domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateDeliveryErr != nil {
		return nil, f.CreateDeliveryErr
	}
	for _, d := range f.deliveries {
		if d.OrderID == req.OrderID && d.Status.HoldsOrder() {
			return nil, &client.ConflictError{Op: "create delivery", Message: "delivery already exists", Delivery: cloneDelivery(d)}
		}
	}
	now := time.Now().UTC()
	d := &domain.Delivery{
		ID:              uuid.NewString(),
		OrderID:         req.OrderID,
		Status:          domain.DeliveryStatusPending,
		RestaurantID:    req.RestaurantID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.deliveries[d.ID] = d
	return cloneDelivery(d), nil
}

func (f *Fake) ListDeliveries(context.Context) ([]domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Delivery, 0, len(f.deliveries))
	for _, d := range f.deliveries {
		out = append(out, *cloneDelivery(d))
	}
	slices.SortFunc(out, func(a, b domain.Delivery) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (f *Fake) GetDelivery(_ context.Context, id string) (*domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return nil, fmt.Errorf("get delivery: %w", domain.ErrNotFound)
	}
	return cloneDelivery(d), nil
}

func (f *Fake) AssignDelivery(_ context.Context, id, driverID string) (*domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return nil, fmt.Errorf("assign delivery: %w", domain.ErrNotFound)
	}
	if d.Status != domain.DeliveryStatusPending {
		return nil, &client.ConflictError{Op: "assign delivery", Message: "delivery is not awaiting a driver", Delivery: cloneDelivery(d)}
	}
	now := time.Now().UTC()
	d.DriverID = driverID
	d.Status = domain.DeliveryStatusAssigned
	d.AssignedAt = &now
	d.Version++
	return cloneDelivery(d), nil
}

func (f *Fake) UpdateDeliveryStatus(_ context.Context, id string, update domain.DeliveryStatusUpdate) (*domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return nil, fmt.Errorf("update delivery status: %w", domain.ErrNotFound)
	}
	if d.Status != update.ExpectedStatus || !domain.CanTransitionDelivery(d.Status, update.Status) {
		return nil, &client.ConflictError{Op: "update delivery status", Message: "delivery is not in the expected state", Delivery: cloneDelivery(d)}
	}
	now := time.Now().UTC()
	d.Status = update.Status
	d.Version++
	d.UpdatedAt = now
	switch update.Status {
	case domain.DeliveryStatusPickedUp:
		d.PickedUpAt = stamp(update.PickedUpAt, now)
	case domain.DeliveryStatusDelivered:
		d.DeliveredAt = stamp(update.DeliveredAt, now)
	}
	return cloneDelivery(d), nil
}

func stamp(given *time.Time, now time.Time) *time.Time {
	if given != nil {
		t := *given
		return &t
	}
	return &now
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

func cloneDelivery(d *domain.Delivery) *domain.Delivery {
	c := *d
	return &c
}
