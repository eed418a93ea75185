package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestMessageCarrier(t *testing.T) {
	t.Run("set overwrites existing headers", func(t *testing.T) {
		msg := kafka.Message{Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte("old")}}}
		c := NewMessageCarrier(&msg)

		c.Set(EventTypeHeader, "order.status.changed")
		c.Set("traceparent", "00-abc")

		if len(msg.Headers) != 2 {
			t.Fatalf("expected 2 headers, got %d", len(msg.Headers))
		}
		if got := c.Get(EventTypeHeader); got != "order.status.changed" {
			t.Errorf("unexpected event type %q", got)
		}
		if got := c.Get("missing"); got != "" {
			t.Errorf("expected empty value, got %q", got)
		}
		if keys := c.Keys(); len(keys) != 2 || keys[1] != "traceparent" {
			t.Errorf("unexpected keys %v", keys)
		}
	})

	t.Run("round-trips trace context", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		var msg kafka.Message
		prop := propagation.TraceContext{}
		prop.Inject(ctx, NewMessageCarrier(&msg))

		extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), NewMessageCarrier(&msg)))
		if extracted.TraceID() != traceID || extracted.SpanID() != spanID {
			t.Errorf("trace context lost: %v", extracted)
		}
	})
}

type namedEvent struct {
	ID string `json:"id"`
}

func (namedEvent) EventType() string { return "thing.happened" }

func TestNewMessage(t *testing.T) {
	msg, err := newMessage("o-1", namedEvent{ID: "o-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg.Key) != "o-1" || string(msg.Value) != `{"id":"o-1"}` {
		t.Errorf("unexpected message %s=%s", msg.Key, msg.Value)
	}
	if got := EventType(&msg); got != "thing.happened" {
		t.Errorf("expected event type header, got %q", got)
	}
	if got := NewMessageCarrier(&msg).Get(ContentTypeHeader); got != "application/json" {
		t.Errorf("expected json content type, got %q", got)
	}

	untyped, err := newMessage("k", map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := EventType(&untyped); got != "" {
		t.Errorf("expected no event type, got %q", got)
	}

	if _, err := newMessage("k", make(chan int)); err == nil {
		t.Error("expected an encoding error")
	}
}

func TestConsumerAccepts(t *testing.T) {
	typed := func(typ string) *kafka.Message {
		msg := &kafka.Message{}
		if typ != "" {
			NewMessageCarrier(msg).Set(EventTypeHeader, typ)
		}
		return msg
	}

	all := &Consumer{}
	if !all.accepts(typed("anything")) {
		t.Error("consumer without a filter must accept every message")
	}

	cfg := consumerConfig{}
	WithEventTypes("order.status.changed")(&cfg)
	filtered := &Consumer{accept: cfg.accept}

	tests := []struct {
		typ  string
		want bool
	}{
		{"order.status.changed", true},
		{"order.refunded", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := filtered.accepts(typed(tt.typ)); got != tt.want {
			t.Errorf("accepts(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		err := retry(ctx, 5, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return errors.New("orders service unavailable")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("stops on poison", func(t *testing.T) {
		calls := 0
		err := retry(ctx, 5, time.Millisecond, func() error {
			calls++
			return ErrPoison
		})
		if !errors.Is(err, ErrPoison) {
			t.Fatalf("expected ErrPoison, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected a single call, got %d", calls)
		}
	})

	t.Run("gives up after max tries", func(t *testing.T) {
		calls := 0
		err := retry(ctx, 2, time.Millisecond, func() error {
			calls++
			return errors.New("still down")
		})
		if err == nil {
			t.Fatal("expected an error")
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})
}
