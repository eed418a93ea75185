package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/foodflow/internal/client/clienttest"
	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/messaging"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func event(t *testing.T, orderID string, to domain.OrderStatus) []byte {
	t.Helper()
	b, err := json.Marshal(domain.OrderStatusEvent{OrderID: orderID, RestaurantID: "r1", To: to})
	require.NoError(t, err)
	return b
}

func fakeWithOrder() *clienttest.Fake {
	fake := clienttest.New()
	fake.PutOrder(domain.Order{
		ID:              "o1",
		RestaurantID:    "r1",
		CustomerName:    "Ada",
		CustomerPhone:   "+15550100",
		DeliveryAddress: "12 Main Street",
		TotalAmount:     decimal.RequireFromString("21.5"),
		Status:          domain.OrderStatusOutForDelivery,
	})
	return fake
}

func TestNotifierSendsPerStatus(t *testing.T) {
	tests := []struct {
		status  domain.OrderStatus
		subject string
		body    string
	}{
		{domain.OrderStatusPending, "Order received", "we received order o1 for 21.50"},
		{domain.OrderStatusPreparing, "Your order is being prepared", "started preparing order o1"},
		{domain.OrderStatusOutForDelivery, "Your order is on its way", "heading to 12 Main Street"},
		{domain.OrderStatusDelivered, "Your order was delivered", "order o1 was delivered"},
		{domain.OrderStatusCancelled, "Your order was cancelled", "order o1 was cancelled"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sender := &recordingSender{}
			n := NewNotifier(fakeWithOrder(), sender, discard)

			require.NoError(t, n.Handle(context.Background(), event(t, "o1", tt.status)))

			require.Len(t, sender.sent, 1)
			msg := sender.sent[0]
			assert.Equal(t, "o1", msg.OrderID)
			assert.Equal(t, "+15550100", msg.To)
			assert.Equal(t, tt.subject, msg.Subject)
			assert.Contains(t, msg.Body, "Hi Ada")
			assert.Contains(t, msg.Body, tt.body)
		})
	}
}

func TestNotifierSkipsReadyForPickup(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(fakeWithOrder(), sender, discard)

	require.NoError(t, n.Handle(context.Background(), event(t, "o1", domain.OrderStatusReadyForPickup)))
	assert.Empty(t, sender.sent)
}

func TestNotifierSkipsOrdersWithoutContact(t *testing.T) {
	fake := clienttest.New()
	fake.PutOrder(domain.Order{ID: "o2", Status: domain.OrderStatusDelivered})
	sender := &recordingSender{}

	require.NoError(t, NewNotifier(fake, sender, discard).Handle(context.Background(), event(t, "o2", domain.OrderStatusDelivered)))
	assert.Empty(t, sender.sent)
}

func TestNotifierErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed payload is poison", func(t *testing.T) {
		err := NewNotifier(fakeWithOrder(), &recordingSender{}, discard).Handle(ctx, []byte("{"))
		assert.ErrorIs(t, err, messaging.ErrPoison)
	})

	t.Run("unknown order is poison", func(t *testing.T) {
		err := NewNotifier(fakeWithOrder(), &recordingSender{}, discard).Handle(ctx, event(t, "missing", domain.OrderStatusDelivered))
		assert.ErrorIs(t, err, messaging.ErrPoison)
	})

	t.Run("send failure is retried", func(t *testing.T) {
		sender := &recordingSender{err: errors.New("provider down")}
		err := NewNotifier(fakeWithOrder(), sender, discard).Handle(ctx, event(t, "o1", domain.OrderStatusDelivered))
		require.Error(t, err)
		assert.NotErrorIs(t, err, messaging.ErrPoison)
	})
}

func TestLogSenderHonoursContext(t *testing.T) {
	s := NewLogSender(discard)
	s.delay = func() time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, Message{OrderID: "o1"}), context.Canceled)

	s.delay = func() time.Duration { return 0 }
	assert.NoError(t, s.Send(context.Background(), Message{OrderID: "o1"}))
}
