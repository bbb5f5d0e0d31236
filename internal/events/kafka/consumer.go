package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finsight/internal/events"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// maxAttempts bounds how often one message is handed to the handler before
// it is committed anyway. Kafka has no per-message requeue.
const maxAttempts = 3

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads events from a topic as part of a consumer group.
type Consumer struct {
	reader reader
	log    zerolog.Logger
	retry  time.Duration
}

// NewConsumer joins groupID on topic.
func NewConsumer(brokers []string, topic, groupID string, log zerolog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		log:   log.With().Str("component", "events.kafka").Logger(),
		retry: time.Second,
	}
}

// Consume implements events.Consumer. Offsets are committed after the handler
// succeeds, after a message fails to decode, or after maxAttempts failures.
func (c *Consumer) Consume(ctx context.Context, handler events.Handler) error {
	c.log.Info().Msg("Started consuming activity events")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info().Err(ctx.Err()).Msg("Stopping event consumption")
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		e, err := events.FromJSON(msg.Value)
		if err != nil {
			c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to decode event")
		} else if err := c.handle(ctx, handler, e); err != nil {
			if errors.Is(err, ctx.Err()) {
				return err
			}
			c.log.Error().Err(err).Str("event_id", e.ID).Int("attempts", maxAttempts).Msg("Giving up on event")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handler events.Handler, e events.Event) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = handler(ctx, e); err == nil {
			return nil
		}
		c.log.Warn().Err(err).Str("event_id", e.ID).Int("attempt", attempt).Msg("Failed to handle event")
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry):
		}
	}
	return err
}

// Close implements events.Consumer.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

var _ events.Consumer = (*Consumer)(nil)
