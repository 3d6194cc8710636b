package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxHandlerAttempts bounds how often a handler sees one message before it is
// dead-lettered and committed.
const maxHandlerAttempts = 3

// retryBackoff is multiplied by the attempt number between attempts.
const retryBackoff = 100 * time.Millisecond

// TopicPrefix is the prefix of every litium topic.
const TopicPrefix = "litium"

// Topic returns the topic carrying action events of domain, such as
// "litium.productdocument.indexed".
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}

// Handler processes one event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// DLQ receives messages whose handler failed every attempt. Nil drops them.
	DLQ *DLQProducer
	// Idempotency skips events already handled. Nil disables deduplication.
	Idempotency IdempotencyStore
}

// Consumer reads one topic as part of a consumer group and commits each
// message once it has been handled or dead-lettered.
type Consumer struct {
	reader      *kafka.Reader
	logger      *slog.Logger
	handler     Handler
	dlq         *DLQProducer
	idempotency IdempotencyStore
	group       string
	topic       string
	closeOnce   sync.Once
}

// NewConsumer creates a consumer. No connection is made until Start.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	return &Consumer{
		reader:      r,
		logger:      logger.With(slog.String("topic", cfg.Topic), slog.String("group", cfg.GroupID)),
		handler:     handler,
		dlq:         cfg.DLQ,
		idempotency: cfg.Idempotency,
		group:       cfg.GroupID,
		topic:       cfg.Topic,
	}
}

// Start consumes until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		consumerMessages.WithLabelValues(msg.Topic, c.group, outcomeReceived).Inc()
		if !msg.Time.IsZero() {
			consumerMessageAge.WithLabelValues(msg.Topic, c.group).Observe(time.Since(msg.Time).Seconds())
		}

		if !c.process(ctx, msg) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process settles one message. It returns false when ctx was canceled
// before that happened, leaving the message uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		consumerMessages.WithLabelValues(msg.Topic, c.group, outcomeMalformed).Inc()
		c.logger.Error("dropping malformed message",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err, 0)
		return true
	}

	ctx, span := otel.Tracer(tracerName).Start(
		extractTrace(ctx, msg.Headers),
		"kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.kafka.consumer.group", c.group),
			attribute.String("messaging.message.id", event.EventID),
			attribute.String("event.type", event.EventType),
		),
	)
	defer span.End()

	if c.duplicate(ctx, event) {
		consumerMessages.WithLabelValues(msg.Topic, c.group, outcomeDuplicate).Inc()
		return true
	}

	start := time.Now()
	attempts, err := c.handle(ctx, event)
	consumerDuration.WithLabelValues(msg.Topic, c.group).Observe(time.Since(start).Seconds())
	if ctx.Err() != nil && err != nil {
		return false
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		consumerMessages.WithLabelValues(msg.Topic, c.group, outcomeFailed).Inc()
		c.logger.Error("handler failed, giving up",
			slog.String("event_id", event.EventID),
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err, attempts)
		return true
	}

	consumerMessages.WithLabelValues(msg.Topic, c.group, outcomeProcessed).Inc()
	c.remember(ctx, event)
	return true
}

// handle runs the handler until it succeeds, the attempts are used up, or
// the payload turns out to be malformed.
func (c *Consumer) handle(ctx context.Context, event *Event) (int, error) {
	var err error
	for attempt := 1; attempt <= maxHandlerAttempts; attempt++ {
		err = c.handler(ctx, event)
		if err == nil || errors.Is(err, ErrMalformedEvent) {
			return attempt, err
		}
		c.logger.Warn("handler failed",
			slog.String("event_id", event.EventID),
			slog.String("event_type", event.EventType),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt == maxHandlerAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return maxHandlerAttempts, err
}

func (c *Consumer) duplicate(ctx context.Context, event *Event) bool {
	if c.idempotency == nil || event.EventID == "" {
		return false
	}
	seen, err := c.idempotency.Seen(ctx, event.EventID)
	if err != nil {
		c.logger.Warn("idempotency lookup failed, handling event anyway",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if seen {
		c.logger.Debug("skipping duplicate event",
			slog.String("event_id", event.EventID),
			slog.String("event_type", event.EventType),
		)
	}
	return seen
}

func (c *Consumer) remember(ctx context.Context, event *Event) {
	if c.idempotency == nil || event.EventID == "" {
		return
	}
	if err := c.idempotency.Remember(ctx, event.EventID); err != nil {
		c.logger.Warn("failed to remember event",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error, attempts int) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group, attempts); err != nil {
		return
	}
	consumerMessages.WithLabelValues(msg.Topic, c.group, outcomeDeadLettered).Inc()
}

// Close closes the reader. It is safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
