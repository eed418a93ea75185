// Package lifecycle turns a cart into an order and owns the guarded order
// status transition every actor goes through.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/foodflow/internal/cart"
	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/pricing"
)

const minAddressLength = 5

type OrdersAPI interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Order, error)
	RecordPayment(ctx context.Context, id string, record domain.PaymentRecord) (*domain.Order, error)
}

type PaymentsAPI interface {
	CreatePaymentIntent(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error)
}

type Manager struct {
	cart     *cart.Store
	orders   OrdersAPI
	payments PaymentsAPI
	logger   *slog.Logger
}

// NewManager wires a manager. store may be nil for actors that never submit
// (restaurant, courier).
func NewManager(store *cart.Store, orders OrdersAPI, payments PaymentsAPI, logger *slog.Logger) *Manager {
	return &Manager{
		cart:     store,
		orders:   orders,
		payments: payments,
		logger:   logger,
	}
}

type Checkout struct {
	Customer            domain.Customer
	DeliveryAddress     string
	SpecialInstructions string
	PaymentMethod       domain.PaymentMethod
}

// Submit places an order for the current cart. On a payment failure it
// returns the created order together with a *PaymentError.
func (m *Manager) Submit(ctx context.Context, checkout Checkout) (*domain.Order, error) {
	if m.cart == nil {
		return nil, fmt.Errorf("submit: no cart configured")
	}

	st := m.cart.State()
	if err := validate(st, checkout); err != nil {
		return nil, err
	}

	breakdown := pricing.Price(st.Cart, st.Restaurant)
	req := domain.CreateOrderRequest{
		RestaurantID:        st.Cart.RestaurantID,
		CustomerID:          checkout.Customer.ID,
		CustomerName:        strings.TrimSpace(checkout.Customer.Name),
		CustomerPhone:       strings.TrimSpace(checkout.Customer.Phone),
		Items:               snapshot(st.Cart),
		DeliveryAddress:     strings.TrimSpace(checkout.DeliveryAddress),
		SpecialInstructions: strings.TrimSpace(checkout.SpecialInstructions),
		PaymentMethod:       checkout.PaymentMethod,
		TotalAmount:         breakdown.Total,
	}

	order, err := m.orders.CreateOrder(ctx, req)
	if err != nil {
		m.logger.Error("failed to create order", "error", err, "restaurant_id", req.RestaurantID)
		return nil, fmt.Errorf("%w: %w", ErrOrderCreation, err)
	}

	m.logger.Info("order created", "order_id", order.ID, "total", order.TotalAmount.String())

	if checkout.PaymentMethod == domain.PaymentMethodCard {
		intent, err := m.payments.CreatePaymentIntent(ctx, domain.PaymentIntentRequest{
			OrderID:  order.ID,
			Amount:   order.TotalAmount,
			Currency: domain.CurrencyUSD,
		})
		if err != nil {
			m.logger.Error("payment failed after order creation", "error", err, "order_id", order.ID)
			return order, &PaymentError{OrderID: order.ID, Err: err}
		}

		paid, err := m.orders.RecordPayment(ctx, order.ID, domain.PaymentRecord{PaymentID: intent.ID, Paid: true})
		if err != nil {
			m.logger.Error("failed to record payment on order", "error", err, "order_id", order.ID, "payment_id", intent.ID)
		} else {
			order = paid
		}
	}

	m.cart.Clear()
	return order, nil
}

func validate(st cart.State, checkout Checkout) error {
	var problems []string

	if st.Cart.IsEmpty() {
		problems = append(problems, "cart is empty")
	}
	if st.Restaurant == nil || st.Restaurant.ID == "" || st.Restaurant.ID != st.Cart.RestaurantID {
		problems = append(problems, "no restaurant selected")
	}
	if len(strings.TrimSpace(checkout.DeliveryAddress)) < minAddressLength {
		problems = append(problems, "delivery address is missing or too short")
	}
	if !checkout.PaymentMethod.Valid() {
		problems = append(problems, fmt.Sprintf("unsupported payment method %q", checkout.PaymentMethod))
	}
	if strings.TrimSpace(checkout.Customer.Name) == "" {
		problems = append(problems, "customer name is required")
	}
	if strings.TrimSpace(checkout.Customer.Phone) == "" {
		problems = append(problems, "customer phone is required")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func snapshot(c domain.Cart) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, domain.OrderItem{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return items
}

// Track re-reads the order from the server.
func (m *Manager) Track(ctx context.Context, id string) (*domain.Order, error) {
	order, err := m.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("track order %s: %w", id, err)
	}
	return order, nil
}

// Transition moves order to the next status on behalf of actor. The request
// is conditioned on the status and version the caller last saw; a mismatch
// comes back as an error matching domain.ErrConflict and the caller should
// re-read the order.
func (m *Manager) Transition(ctx context.Context, actor domain.Actor, order domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	if !domain.CanPerform(actor, order.Status, to) {
		return nil, &domain.TransitionError{From: string(order.Status), To: string(to), Actor: actor}
	}

	updated, err := m.orders.UpdateOrderStatus(ctx, order.ID, domain.StatusUpdate{
		Status:          to,
		ExpectedStatus:  order.Status,
		ExpectedVersion: order.Version,
	})
	if err != nil {
		m.logger.Warn("order transition failed", "error", err, "order_id", order.ID,
			"actor", actor, "from", order.Status, "to", to)
		return nil, fmt.Errorf("move order %s to %s: %w", order.ID, to, err)
	}

	m.logger.Info("order transitioned", "order_id", updated.ID, "actor", actor, "status", updated.Status)
	return updated, nil
}

// Cancel is the customer's cancel, legal only while the order is PENDING.
func (m *Manager) Cancel(ctx context.Context, order domain.Order) (*domain.Order, error) {
	return m.Transition(ctx, domain.ActorCustomer, order, domain.OrderStatusCancelled)
}
