package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

const (
	// EventTypeHeader carries the event name so consumers can route or skip
	// messages without decoding them.
	EventTypeHeader   = "event-type"
	ContentTypeHeader = "content-type"

	// EventTypeAttribute tags producer and consumer spans with the event name.
	EventTypeAttribute = "messaging.event_type"
)

// Typed events name themselves in the EventTypeHeader.
type Typed interface {
	EventType() string
}

var _ propagation.TextMapCarrier = (*MessageCarrier)(nil)

// MessageCarrier exposes kafka headers to the OpenTelemetry propagator.
// Keys are unique: Set replaces an existing header.
type MessageCarrier struct {
	msg *kafka.Message
}

func NewMessageCarrier(msg *kafka.Message) *MessageCarrier {
	return &MessageCarrier{msg: msg}
}

func (c *MessageCarrier) Get(key string) string {
	if i := c.index(key); i >= 0 {
		return string(c.msg.Headers[i].Value)
	}
	return ""
}

func (c *MessageCarrier) Set(key, value string) {
	if i := c.index(key); i >= 0 {
		c.msg.Headers[i].Value = []byte(value)
		return
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *MessageCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *MessageCarrier) index(key string) int {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			return i
		}
	}
	return -1
}

// EventType returns the message's event name, or "" when the producer did
// not set one.
func EventType(msg *kafka.Message) string {
	return NewMessageCarrier(msg).Get(EventTypeHeader)
}

// newMessage encodes event as JSON under key, naming it when it is Typed.
func newMessage(key string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{Key: []byte(key), Value: data}
	carrier := NewMessageCarrier(&msg)
	carrier.Set(ContentTypeHeader, "application/json")
	if typed, ok := event.(Typed); ok {
		carrier.Set(EventTypeHeader, typed.EventType())
	}
	return msg, nil
}
