// Package rabbitmq publishes and consumes events over a durable RabbitMQ
// queue using the default exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sakif/snippet-vault/internal/events"
)

// Dial connects and proves the broker answers by opening a channel.
func Dial(ctx context.Context, url string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(5 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}
	_ = ch.Close()

	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// PublishChannel is the subset of *amqp.Channel the publisher uses.
type PublishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends events as persistent JSON messages. An amqp channel must
// not be used for concurrent publishes, so calls are serialised.
type Publisher struct {
	mu     sync.Mutex
	ch     PublishChannel
	queue  string
	logger *slog.Logger
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher declares the durable queue once and takes ownership of ch.
func NewPublisher(ch PublishChannel, queue string, logger *slog.Logger) (*Publisher, error) {
	if _, err := declare(ch, queue); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, queue: queue, logger: logger}, nil
}

func declare(ch interface {
	QueueDeclare(string, bool, bool, bool, bool, amqp.Table) (amqp.Queue, error)
}, queue string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declaring queue %s: %w", queue, err)
	}
	return q, nil
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         string(event.Type),
			Body:         payload,
		},
	); err != nil {
		return fmt.Errorf("publishing %s: %w", event.Type, err)
	}

	p.logger.Debug("event published",
		slog.String("type", string(event.Type)),
		slog.String("user_id", event.UserID),
	)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
