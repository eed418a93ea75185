package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/foodflow/internal/cart"
	"github.com/joao-fontenele/foodflow/internal/client"
	"github.com/joao-fontenele/foodflow/internal/client/clienttest"
	"github.com/joao-fontenele/foodflow/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func filledCart(t *testing.T) *cart.Store {
	t.Helper()
	fee := decimal.NewFromInt(3)
	restaurant := domain.Restaurant{ID: "r1", Name: "Pizza Place", DeliveryFee: &fee}
	item := domain.MenuItem{ID: "a", Name: "Margherita", UnitPrice: decimal.NewFromInt(5)}

	store := cart.NewStore(cart.State{}, nil)
	require.NoError(t, store.AddItem(restaurant, item))
	require.NoError(t, store.AddItem(restaurant, item))
	return store
}

func validCheckout(method domain.PaymentMethod) Checkout {
	return Checkout{
		Customer:        domain.Customer{ID: "c1", Name: "Ada", Phone: "555-0100"},
		DeliveryAddress: "12 Main Street",
		PaymentMethod:   method,
	}
}

func TestSubmitCardSuccess(t *testing.T) {
	fake := clienttest.New()
	store := filledCart(t)
	m := NewManager(store, fake, fake, discardLogger())

	order, err := m.Submit(context.Background(), validCheckout(domain.PaymentMethodCard))

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(14)))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.IsPaid)
	assert.NotEmpty(t, order.PaymentID)
	assert.True(t, store.Cart().IsEmpty())
}

func TestSubmitCashSkipsPayment(t *testing.T) {
	fake := clienttest.New()
	store := filledCart(t)
	m := NewManager(store, fake, fake, discardLogger())

	order, err := m.Submit(context.Background(), validCheckout(domain.PaymentMethodCash))

	require.NoError(t, err)
	assert.False(t, order.IsPaid)
	assert.Equal(t, 0, fake.Payments)
	assert.True(t, store.Cart().IsEmpty())
}

func TestSubmitPaymentFailureKeepsCart(t *testing.T) {
	fake := clienttest.New()
	fake.PaymentErr = &client.RequestError{Op: "create payment intent", Status: 402, Message: "card declined"}
	store := filledCart(t)
	m := NewManager(store, fake, fake, discardLogger())

	order, err := m.Submit(context.Background(), validCheckout(domain.PaymentMethodCard))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.NotErrorIs(t, err, ErrOrderCreation)

	var pe *PaymentError
	require.ErrorAs(t, err, &pe)
	require.NotNil(t, order)
	assert.Equal(t, order.ID, pe.OrderID)

	stored, getErr := fake.GetOrder(context.Background(), order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	assert.False(t, stored.IsPaid)

	assert.Len(t, store.Cart().Items, 1)
	assert.Equal(t, 2, store.Cart().Items[0].Quantity)
}

func TestSubmitOrderCreationFailure(t *testing.T) {
	fake := clienttest.New()
	fake.CreateOrderErr = &client.TransientError{Op: "create order", Status: 503, Err: errors.New("unavailable")}
	store := filledCart(t)
	m := NewManager(store, fake, fake, discardLogger())

	order, err := m.Submit(context.Background(), validCheckout(domain.PaymentMethodCard))

	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrOrderCreation)
	assert.True(t, client.IsTransient(err))
	assert.NotErrorIs(t, err, ErrPaymentFailed)
	assert.False(t, store.Cart().IsEmpty())
	assert.Equal(t, 0, fake.Payments)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name     string
		store    func(t *testing.T) *cart.Store
		checkout func() Checkout
		problem  string
	}{
		{
			name:     "empty cart",
			store:    func(*testing.T) *cart.Store { return cart.NewStore(cart.State{}, nil) },
			checkout: func() Checkout { return validCheckout(domain.PaymentMethodCard) },
			problem:  "cart is empty",
		},
		{
			name:  "short address",
			store: filledCart,
			checkout: func() Checkout {
				c := validCheckout(domain.PaymentMethodCard)
				c.DeliveryAddress = " 1 "
				return c
			},
			problem: "delivery address is missing or too short",
		},
		{
			name:  "unknown payment method",
			store: filledCart,
			checkout: func() Checkout {
				return validCheckout(domain.PaymentMethod("crypto"))
			},
			problem: `unsupported payment method "crypto"`,
		},
		{
			name:  "missing customer phone",
			store: filledCart,
			checkout: func() Checkout {
				c := validCheckout(domain.PaymentMethodCash)
				c.Customer.Phone = ""
				return c
			},
			problem: "customer phone is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := clienttest.New()
			store := tt.store(t)
			before := store.State()
			m := NewManager(store, fake, fake, discardLogger())

			order, err := m.Submit(context.Background(), tt.checkout())

			assert.Nil(t, order)
			assert.ErrorIs(t, err, domain.ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Problems, tt.problem)
			assert.Equal(t, before, store.State())

			orders, _ := fake.ListOrders(context.Background(), domain.OrderFilter{})
			assert.Empty(t, orders)
		})
	}
}

func TestTransitionGuards(t *testing.T) {
	ctx := context.Background()
	fake := clienttest.New()
	m := NewManager(nil, fake, fake, discardLogger())
	fake.PutOrder(domain.Order{ID: "o1", Status: domain.OrderStatusPending, Version: 1})

	t.Run("actor not allowed", func(t *testing.T) {
		order, _ := fake.GetOrder(ctx, "o1")
		_, err := m.Transition(ctx, domain.ActorCourier, *order, domain.OrderStatusPreparing)

		assert.ErrorIs(t, err, domain.ErrConflict)
		var te *domain.TransitionError
		assert.ErrorAs(t, err, &te)
		assert.Equal(t, 0, fake.OrderUpdates)
	})

	t.Run("restaurant accepts", func(t *testing.T) {
		order, _ := fake.GetOrder(ctx, "o1")
		updated, err := m.Transition(ctx, domain.ActorRestaurant, *order, domain.OrderStatusPreparing)

		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPreparing, updated.Status)
		assert.Equal(t, int64(2), updated.Version)
	})

	t.Run("stale customer cancel conflicts", func(t *testing.T) {
		stale := domain.Order{ID: "o1", Status: domain.OrderStatusPending, Version: 1}
		_, err := m.Cancel(ctx, stale)

		assert.ErrorIs(t, err, domain.ErrConflict)
		var ce *client.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, domain.OrderStatusPreparing, ce.Order.Status)

		current, _ := fake.GetOrder(ctx, "o1")
		assert.Equal(t, domain.OrderStatusPreparing, current.Status)
	})
}

func TestDeliveredOrderRejectsEveryTransition(t *testing.T) {
	ctx := context.Background()
	fake := clienttest.New()
	m := NewManager(nil, fake, fake, discardLogger())
	delivered := domain.Order{ID: "o1", Status: domain.OrderStatusDelivered, Version: 5}
	fake.PutOrder(delivered)

	for _, actor := range []domain.Actor{domain.ActorCustomer, domain.ActorRestaurant, domain.ActorCourier} {
		for _, to := range domain.OrderStatuses() {
			_, err := m.Transition(ctx, actor, delivered, to)
			assert.ErrorIs(t, err, domain.ErrConflict, "%s -> %s", actor, to)
		}
	}

	current, _ := fake.GetOrder(ctx, "o1")
	assert.Equal(t, domain.OrderStatusDelivered, current.Status)
	assert.Equal(t, 0, fake.OrderUpdates)
}

func TestTrack(t *testing.T) {
	fake := clienttest.New()
	m := NewManager(nil, fake, fake, discardLogger())

	_, err := m.Track(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
