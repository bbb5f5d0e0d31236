package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finsight/internal/events"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

type consumeChannel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Consumer reads events from the queue the Publisher binds.
type Consumer struct {
	conn      *amqp091.Connection
	channel   consumeChannel
	queueName string
	log       zerolog.Logger
}

// NewConsumer dials the broker and declares the same topology as NewPublisher,
// so either side may start first.
func NewConsumer(url, exchangeName, queueName string, log zerolog.Logger) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(ch, exchangeName, queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return &Consumer{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		log:       log.With().Str("component", "events.amqp").Logger(),
	}, nil
}

// Consume implements events.Consumer. Deliveries are acked manually: bodies
// that do not decode are dropped, handler failures are requeued.
func (c *Consumer) Consume(ctx context.Context, handler events.Handler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log.Info().Str("queue", c.queueName).Msg("Started consuming activity events")
	return c.handleDeliveries(ctx, msgs, handler)
}

func (c *Consumer) handleDeliveries(ctx context.Context, msgs <-chan amqp091.Delivery, handler events.Handler) error {
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Err(ctx.Err()).Msg("Stopping event consumption")
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}

			e, err := events.FromJSON(delivery.Body)
			if err != nil {
				c.log.Error().Err(err).Str("message_id", delivery.MessageId).Msg("Failed to decode event")
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, e); err != nil {
				c.log.Error().Err(err).Str("event_id", e.ID).Str("kind", string(e.Kind)).Msg("Failed to handle event")
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
			c.log.Debug().Str("event_id", e.ID).Str("kind", string(e.Kind)).Msg("Handled event")
		}
	}
}

// Close implements events.Consumer.
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

var _ events.Consumer = (*Consumer)(nil)
