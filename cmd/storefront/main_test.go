package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/foodflow/internal/cart"
	"github.com/joao-fontenele/foodflow/internal/config"
	"github.com/joao-fontenele/foodflow/internal/courier"
	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
)

func newTestApp(t *testing.T, dataFile, gatewayURL string) (*app, *bytes.Buffer) {
	t.Helper()

	cfg := config.Storefront{GatewayURL: gatewayURL, DataFile: dataFile, CustomerID: "c-1"}
	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var out bytes.Buffer
	a.out = &out
	return a, &out
}

func TestMenuLookup(t *testing.T) {
	m, err := loadMenu("")
	require.NoError(t, err)

	r, item, err := m.lookup("r-luigis", "margherita")
	require.NoError(t, err)
	assert.Equal(t, "Luigi's Pizzeria", r.Name)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("11.50")))
	require.NotNil(t, r.DeliveryFee)

	_, _, err = m.lookup("r-luigis", "sushi")
	assert.Error(t, err)
	_, _, err = m.lookup("nowhere", "margherita")
	assert.Error(t, err)
}

func TestLoadMenuValidates(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"restaurant without id", `[{"name":"No id","items":[{"id":"a","name":"A","unit_price":"1"}]}]`, "has no id"},
		{"item without id", `[{"id":"r1","name":"R","items":[{"name":"A","unit_price":"1"}]}]`, "item without id"},
		{"repeated restaurant", `[{"id":"r1","name":"R"},{"id":"r1","name":"R again"}]`, "listed twice"},
		{"negative price", `[{"id":"r1","name":"R","items":[{"id":"a","name":"A","unit_price":"-1"}]}]`, "negative price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "menu.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.json), 0o600))

			_, err := loadMenu(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCartCommandsPersist(t *testing.T) {
	ctx := context.Background()
	dataFile := filepath.Join(t.TempDir(), "cart.db")

	a, out := newTestApp(t, dataFile, "http://unused")
	require.NoError(t, a.run(ctx, "cart", []string{"add", "r-luigis", "margherita"}))
	require.NoError(t, a.run(ctx, "cart", []string{"inc", "margherita"}))
	require.NoError(t, a.run(ctx, "cart", []string{"add", "r-luigis", "tiramisu"}))
	assert.Contains(t, out.String(), "Luigi's Pizzeria (3 items)")

	err := a.run(ctx, "cart", []string{"add", "r-greenbowl", "lemonade"})
	assert.ErrorIs(t, err, cart.ErrDifferentRestaurant)
	require.NoError(t, a.close(ctx))

	b, out := newTestApp(t, dataFile, "http://unused")
	defer func() { _ = b.close(ctx) }()
	require.NoError(t, b.run(ctx, "cart", []string{"show"}))

	c := b.store.Cart()
	assert.Equal(t, "r-luigis", c.RestaurantID)
	assert.Equal(t, 3, c.ItemCount())
	// 2*11.50 + 6.25 = 29.25; tax 2.93; delivery 3.49
	assert.Contains(t, out.String(), "35.67")
}

func TestCartUsage(t *testing.T) {
	a, _ := newTestApp(t, filepath.Join(t.TempDir(), "cart.db"), "http://unused")
	defer func() { _ = a.close(context.Background()) }()

	assert.ErrorIs(t, a.run(context.Background(), "cart", nil), errUsage)
	assert.ErrorIs(t, a.run(context.Background(), "cart", []string{"add", "r-luigis"}), errUsage)
	assert.ErrorIs(t, a.run(context.Background(), "dance", nil), errUsage)
}

func TestCheckout(t *testing.T) {
	var created domain.CreateOrderRequest
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "POST /orders":
			_ = json.NewDecoder(r.Body).Decode(&created)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(domain.Order{
				ID:            "o-1",
				RestaurantID:  created.RestaurantID,
				Items:         created.Items,
				PaymentMethod: created.PaymentMethod,
				TotalAmount:   created.TotalAmount,
				Status:        domain.OrderStatusPending,
				Version:       1,
			})
		case "POST /payments/create-payment-intent":
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":"card declined"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer gateway.Close()

	ctx := context.Background()
	a, out := newTestApp(t, filepath.Join(t.TempDir(), "cart.db"), gateway.URL)
	defer func() { _ = a.close(ctx) }()

	require.NoError(t, a.run(ctx, "cart", []string{"add", "r-greenbowl", "falafel-bowl"}))

	err := a.run(ctx, "checkout", []string{"-name", "Ada", "-phone", "555-0100"})
	var ve *lifecycle.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, describe(err), "Please fix the following")

	out.Reset()
	err = a.run(ctx, "checkout", []string{"-name", "Ada", "-phone", "555-0100", "-address", "1 Main Street"})
	var pe *lifecycle.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "o-1", pe.OrderID)
	assert.Contains(t, out.String(), "o-1")
	assert.False(t, a.store.Cart().IsEmpty(), "cart is kept when payment fails")

	// 9.90 + 0.99 tax, free delivery
	assert.True(t, created.TotalAmount.Equal(decimal.RequireFromString("10.89")), created.TotalAmount.String())
	assert.Equal(t, "c-1", created.CustomerID)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"restaurant switch", cart.ErrDifferentRestaurant, "cart clear"},
		{"sync pending", &courier.SyncPendingError{DeliveryID: "d-1", OrderID: "o-1"}, "courier reconcile d-1"},
		{"no active delivery", courier.ErrNoActiveDelivery, "no active delivery"},
		{"transition", &domain.TransitionError{From: "DELIVERED", To: "PENDING"}, "cannot move to PENDING"},
		{"not found", errors.Join(errors.New("get order"), domain.ErrNotFound), "Not found."},
		{"other", errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, describe(tt.err), tt.want)
		})
	}
}
