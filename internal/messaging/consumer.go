package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

const DefaultRetryInterval = 200 * time.Millisecond

// ErrPoison marks a message the handler can never process. The consumer
// logs it and commits past it instead of stopping.
var ErrPoison = errors.New("poison message")

type Handler func(ctx context.Context, payload []byte) error

type Consumer struct {
	reader   *kafka.Reader
	topic    string
	groupID  string
	logger   *slog.Logger
	maxTries uint
	backoff  time.Duration
	accept   map[string]bool
}

type consumerConfig struct {
	reader   kafka.ReaderConfig
	logger   *slog.Logger
	maxTries uint
	backoff  time.Duration
	accept   map[string]bool
}

type ConsumerOption func(*consumerConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.StartOffset = offset
	}
}

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.logger = logger
	}
}

// WithRetry retries a failing handler up to maxTries times, starting at
// initial and backing off exponentially.
func WithRetry(maxTries uint, initial time.Duration) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.maxTries = maxTries
		cfg.backoff = initial
	}
}

// WithEventTypes hands only messages of the given types to the handler.
// Others are committed unseen; messages without a type are always handled.
func WithEventTypes(types ...string) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.accept = make(map[string]bool, len(types))
		for _, t := range types {
			cfg.accept[t] = true
		}
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
		logger:   slog.Default(),
		maxTries: 5,
		backoff:  DefaultRetryInterval,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer{
		reader:   kafka.NewReader(cfg.reader),
		topic:    topic,
		groupID:  groupID,
		logger:   cfg.logger,
		maxTries: cfg.maxTries,
		backoff:  cfg.backoff,
		accept:   cfg.accept,
	}
}

// Consume processes messages until ctx ends or a message keeps failing after
// its retries. The offset is committed only once the handler succeeded or
// reported ErrPoison, so the failed message is redelivered on restart.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if !c.accepts(&msg) {
			c.logger.Debug("skipping event", "event_type", EventType(&msg), "topic", c.topic, "offset", msg.Offset)
		} else if err := c.processMessage(ctx, msg, handler); err != nil {
			if !errors.Is(err, ErrPoison) {
				return err
			}
			c.logger.Error("skipping poison message", "error", err, "topic", c.topic,
				"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) accepts(msg *kafka.Message) bool {
	typ := EventType(msg)
	return c.accept == nil || typ == "" || c.accept[typ]
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewMessageCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.String(EventTypeAttribute, EventType(&msg)),
		),
	)
	defer span.End()

	if err := c.handle(spanCtx, msg, handler); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler Handler) error {
	return retry(ctx, c.maxTries, c.backoff, func() error {
		err := handler(ctx, msg.Value)
		if err != nil && !errors.Is(err, ErrPoison) {
			c.logger.Warn("message handler failed", "error", err, "topic", c.topic, "offset", msg.Offset)
		}
		return err
	})
}

// retry runs fn until it succeeds, reports ErrPoison, or maxTries is spent.
func retry(ctx context.Context, maxTries uint, initial time.Duration, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := fn(); err != nil {
			if errors.Is(err, ErrPoison) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxTries),
	)
	return err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
