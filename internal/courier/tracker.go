// Package courier drives a delivery through pickup and drop-off and keeps the
// linked order's status in lock-step with it.
package courier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/joao-fontenele/foodflow/internal/client"
	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
)

type DeliveriesAPI interface {
	CreateDelivery(ctx context.Context, req domain.CreateDeliveryRequest) (*domain.Delivery, error)
	ListDeliveries(ctx context.Context) ([]domain.Delivery, error)
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	AssignDelivery(ctx context.Context, id, driverID string) (*domain.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, id string, update domain.DeliveryStatusUpdate) (*domain.Delivery, error)
}

type Tracker struct {
	deliveries DeliveriesAPI
	orders     *lifecycle.Manager
	driverID   string
	logger     *slog.Logger

	maxTries   uint
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

type Option func(*Tracker)

// WithRetry sets how many times the order write is attempted and the first
// backoff interval.
func WithRetry(maxTries uint, initial time.Duration) Option {
	return func(t *Tracker) {
		t.maxTries = maxTries
		t.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			return b
		}
	}
}

func NewTracker(deliveries DeliveriesAPI, orders *lifecycle.Manager, driverID string, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		deliveries: deliveries,
		orders:     orders,
		driverID:   driverID,
		logger:     logger,
		maxTries:   5,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result is the state of both records after a courier operation.
type Result struct {
	Delivery *domain.Delivery
	Order    *domain.Order
}

// Available lists deliveries waiting for a driver.
func (t *Tracker) Available(ctx context.Context) ([]domain.Delivery, error) {
	all, err := t.deliveries.ListDeliveries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	var out []domain.Delivery
	for _, d := range all {
		if d.Status == domain.DeliveryStatusPending {
			out = append(out, d)
		}
	}
	return out, nil
}

// Active finds the driver's current non-terminal delivery, filtering the full
// list client-side.
func (t *Tracker) Active(ctx context.Context) (*domain.Delivery, error) {
	all, err := t.deliveries.ListDeliveries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	var mine []domain.Delivery
	for _, d := range all {
		if d.DriverID == t.driverID && !d.Status.IsTerminal() {
			mine = append(mine, d)
		}
	}
	if len(mine) == 0 {
		return nil, ErrNoActiveDelivery
	}

	slices.SortFunc(mine, func(a, b domain.Delivery) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return &mine[0], nil
}

func (t *Tracker) Accept(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	active, err := t.Active(ctx)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyActive, active.ID)
	}
	if !errors.Is(err, ErrNoActiveDelivery) {
		return nil, err
	}

	d, err := t.deliveries.AssignDelivery(ctx, deliveryID, t.driverID)
	if err != nil {
		return nil, fmt.Errorf("accept delivery %s: %w", deliveryID, err)
	}
	t.logger.Info("delivery accepted", "delivery_id", d.ID, "order_id", d.OrderID, "driver_id", t.driverID)
	return d, nil
}

// Advance performs the single forward action offered for the delivery's
// status and moves the linked order with it.
func (t *Tracker) Advance(ctx context.Context, d domain.Delivery) (*Result, error) {
	action, ok := domain.NextDeliveryAction(d.Status)
	if !ok {
		return nil, fmt.Errorf("%w: delivery %s is %s", ErrNoAction, d.ID, d.Status)
	}
	if d.DriverID != t.driverID {
		return nil, fmt.Errorf("delivery %s is assigned to another driver: %w", d.ID, domain.ErrConflict)
	}
	target, _ := domain.LinkedOrderStatus(action.Next)

	order, err := t.orders.Track(ctx, d.OrderID)
	if err != nil {
		return nil, err
	}

	// Repair a lagging order from an earlier partial failure before moving on.
	if want, ok := domain.LinkedOrderStatus(d.Status); ok && order.Status != want {
		synced, err := t.syncOrder(ctx, *order, want)
		if err != nil {
			return nil, t.syncPending(d, want, err)
		}
		order = synced
	}

	if !reachable(order.Status, target) {
		return nil, &domain.TransitionError{From: string(order.Status), To: string(target), Actor: domain.ActorCourier}
	}

	now := t.now()
	update := domain.DeliveryStatusUpdate{Status: action.Next, ExpectedStatus: d.Status}
	switch action.Next {
	case domain.DeliveryStatusPickedUp:
		update.PickedUpAt = &now
	case domain.DeliveryStatusDelivered:
		update.DeliveredAt = &now
	}

	updated, err := t.deliveries.UpdateDeliveryStatus(ctx, d.ID, update)
	if err != nil {
		return nil, fmt.Errorf("move delivery %s to %s: %w", d.ID, action.Next, err)
	}
	t.logger.Info("delivery advanced", "delivery_id", d.ID, "status", updated.Status)

	synced, err := t.syncOrder(ctx, *order, target)
	if err != nil {
		return &Result{Delivery: updated, Order: order}, t.syncPending(*updated, target, err)
	}
	return &Result{Delivery: updated, Order: synced}, nil
}

// Handoff is the outcome of an abort: the cancelled delivery and the
// replacement waiting for the next driver. Reopened is nil when the
// replacement could not be opened; the dispatch sweep opens it later.
type Handoff struct {
	Cancelled *domain.Delivery
	Reopened  *domain.Delivery
}

// Abort cancels the driver's delivery and opens a replacement for the same
// order. The order keeps its status, so a delivery aborted after pickup is
// handed to the next driver with the order already out for delivery.
func (t *Tracker) Abort(ctx context.Context, d domain.Delivery) (*Handoff, error) {
	if d.DriverID != t.driverID {
		return nil, fmt.Errorf("delivery %s is assigned to another driver: %w", d.ID, domain.ErrConflict)
	}
	if !domain.CanTransitionDelivery(d.Status, domain.DeliveryStatusCancelled) {
		return nil, &domain.TransitionError{From: string(d.Status), To: string(domain.DeliveryStatusCancelled)}
	}

	cancelled, err := t.deliveries.UpdateDeliveryStatus(ctx, d.ID, domain.DeliveryStatusUpdate{
		Status:         domain.DeliveryStatusCancelled,
		ExpectedStatus: d.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("abort delivery %s: %w", d.ID, err)
	}
	t.logger.Info("delivery aborted", "delivery_id", d.ID, "order_id", d.OrderID, "was", d.Status)

	h := &Handoff{Cancelled: cancelled}
	reopened, err := t.deliveries.CreateDelivery(ctx, cancelled.Reopen())
	var ce *client.ConflictError
	switch {
	case err == nil:
		h.Reopened = reopened
		t.logger.Info("delivery reopened", "delivery_id", reopened.ID, "order_id", reopened.OrderID)
	case errors.As(err, &ce) && ce.Delivery != nil:
		h.Reopened = ce.Delivery
	default:
		t.logger.Warn("failed to reopen delivery", "error", err, "order_id", d.OrderID)
	}
	return h, nil
}

type Reconciliation struct {
	Delivery *domain.Delivery
	Order    *domain.Order
	Repaired bool
}

// Reconcile re-reads both records and pushes the order forward until it
// matches what the delivery status requires.
func (t *Tracker) Reconcile(ctx context.Context, deliveryID string) (*Reconciliation, error) {
	d, err := t.deliveries.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	order, err := t.orders.Track(ctx, d.OrderID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	rec := &Reconciliation{Delivery: d, Order: order}
	want, ok := domain.LinkedOrderStatus(d.Status)
	if !ok || order.Status == want {
		return rec, nil
	}
	if !reachable(order.Status, want) {
		return rec, fmt.Errorf("reconcile delivery %s: %w", d.ID,
			&domain.TransitionError{From: string(order.Status), To: string(want), Actor: domain.ActorCourier})
	}

	synced, err := t.syncOrder(ctx, *order, want)
	if err != nil {
		return rec, t.syncPending(*d, want, err)
	}
	rec.Order = synced
	rec.Repaired = true
	t.logger.Info("order reconciled with delivery", "delivery_id", d.ID, "order_id", synced.ID, "status", synced.Status)
	return rec, nil
}

func (t *Tracker) syncPending(d domain.Delivery, want domain.OrderStatus, err error) error {
	t.logger.Error("status sync pending", "error", err, "delivery_id", d.ID, "order_id", d.OrderID, "want", want)
	return &SyncPendingError{DeliveryID: d.ID, OrderID: d.OrderID, Want: want, Err: err}
}

// syncOrder walks the order along the courier's edges until it reaches target.
func (t *Tracker) syncOrder(ctx context.Context, order domain.Order, target domain.OrderStatus) (*domain.Order, error) {
	current := order
	for current.Status != target {
		next, ok := courierStep(current.Status)
		if !ok {
			return nil, &domain.TransitionError{From: string(current.Status), To: string(target), Actor: domain.ActorCourier}
		}
		updated, err := t.step(ctx, current, next)
		if err != nil {
			return nil, err
		}
		current = *updated
	}
	return &current, nil
}

// step applies one transition, retrying transient failures. A conflict is
// resolved by re-reading: already at next counts as done, a newer version of
// the same status is retried, anything else is final.
func (t *Tracker) step(ctx context.Context, order domain.Order, next domain.OrderStatus) (*domain.Order, error) {
	current := order
	op := func() (*domain.Order, error) {
		updated, err := t.orders.Transition(ctx, domain.ActorCourier, current, next)
		if err == nil {
			return updated, nil
		}
		if client.IsTransient(err) {
			return nil, err
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, backoff.Permanent(err)
		}

		fresh, ferr := t.orders.Track(ctx, current.ID)
		if ferr != nil {
			if client.IsTransient(ferr) {
				return nil, ferr
			}
			return nil, backoff.Permanent(ferr)
		}
		switch fresh.Status {
		case next:
			return fresh, nil
		case current.Status:
			current = *fresh
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(t.newBackOff()),
		backoff.WithMaxTries(t.maxTries),
	)
}

func courierStep(from domain.OrderStatus) (domain.OrderStatus, bool) {
	next := domain.NextOrderStatuses(domain.ActorCourier, from)
	if len(next) != 1 {
		return "", false
	}
	return next[0], true
}

// reachable reports whether the courier can move an order from one status to
// another, including standing still.
func reachable(from, to domain.OrderStatus) bool {
	for s := from; ; {
		if s == to {
			return true
		}
		next, ok := courierStep(s)
		if !ok {
			return false
		}
		s = next
	}
}
