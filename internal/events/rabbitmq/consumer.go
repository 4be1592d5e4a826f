package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sakif/snippet-vault/internal/events"
)

// ConsumeChannel is the subset of *amqp.Channel the consumer uses.
type ConsumeChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, event events.Event) error

type Consumer struct {
	ch       ConsumeChannel
	queue    string
	prefetch int
	logger   *slog.Logger
}

func NewConsumer(ch ConsumeChannel, queue string, logger *slog.Logger) *Consumer {
	return &Consumer{ch: ch, queue: queue, prefetch: 10, logger: logger}
}

// Run consumes until ctx is cancelled or the broker closes the delivery
// channel.
//
// ACK RULES:
//   - handled          → Ack
//   - malformed body   → Nack, no requeue (it will never decode)
//   - handler failed   → Nack with requeue on first delivery, dropped on
//     redelivery so a poison message cannot loop forever
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	defer c.ch.Close()

	if _, err := declare(c.ch, c.queue); err != nil {
		return err
	}
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := c.ch.Consume(
		c.queue,
		"",    // consumer tag, generated by the server
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", c.queue, err)
	}

	c.logger.Info("consumer started", slog.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.dispatch(ctx, d, handle)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle Handler) {
	event, err := events.Decode(d.Body)
	if err != nil {
		c.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
		_ = d.Nack(false, false)
		return
	}

	if err := handle(ctx, event); err != nil {
		requeue := !d.Redelivered
		c.logger.Error("event handler failed",
			slog.String("type", string(event.Type)),
			slog.String("user_id", event.UserID),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
}
