package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ErrNoHandler is returned by Start when no handler has been registered.
var ErrNoHandler = errors.New("no event handler registered")

type Consumer struct {
	reader  KafkaReader
	logger  *zap.Logger
	handler func(context.Context, Event) error
	done    chan struct{}
	// newBackOff paces fetch retries and handler retries.
	newBackOff func() backoff.BackOff
}

// NewConsumer reads contact events from topic as part of the consumer group groupID.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
		Dialer:  kafka.DefaultDialer,
	}), logger)
}

func newConsumer(reader KafkaReader, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: reader,
		logger: logger.Named("kafka_consumer"),
		done:   make(chan struct{}),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = time.Minute
			return b
		},
	}
}

// Start consumes until ctx is cancelled or the reader is closed. A failing
// handler is retried with exponential backoff. Once the retries run out the
// event is logged as dropped and its offset committed.
func (c *Consumer) Start(ctx context.Context) error {
	if c.handler == nil {
		return ErrNoHandler
	}
	go c.run(ctx)
	return nil
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	fetchBackOff := c.newBackOff()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			wait := fetchBackOff.NextBackOff()
			if wait == backoff.Stop {
				wait = time.Second
			}
			c.logger.Error("Failed to fetch message", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		fetchBackOff.Reset()

		c.process(ctx, msg)
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to parse event",
			zap.Error(err),
			zap.ByteString("value", msg.Value),
		)
		c.commit(ctx, msg, "")
		return
	}

	err := backoff.RetryNotify(func() error {
		return c.handler(ctx, event)
	}, backoff.WithContext(c.newBackOff(), ctx), func(err error, wait time.Duration) {
		c.logger.Warn("Failed to handle event, retrying",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.Duration("retry_in", wait),
		)
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("Failed to handle event, dropping it",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.Int64("offset", msg.Offset),
		)
	}
	c.commit(ctx, msg, event.Type)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, eventType EventType) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.String("event_type", string(eventType)),
		)
	}
}

func (c *Consumer) RegisterHandler(fn func(context.Context, Event) error) {
	c.handler = fn
}

// Done is closed once the consume loop has returned.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}

// AuditHandler returns a handler that records every contact event in the log.
func AuditHandler(logger *zap.Logger) func(context.Context, Event) error {
	logger = logger.Named("audit")
	return func(_ context.Context, event Event) error {
		fields := []zap.Field{
			zap.String("event_type", string(event.Type)),
			zap.Time("occurred_at", event.OccurredAt),
		}
		if event.Contact != nil {
			fields = append(fields,
				zap.String("contact_id", event.Contact.ID.String()),
				zap.String("first_name", event.Contact.FirstName),
				zap.String("last_name", event.Contact.LastName),
			)
		}
		logger.Info("Contact changed", fields...)
		return nil
	}
}
