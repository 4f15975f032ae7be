package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQClient publishes messages to a durable RabbitMQ queue through the default exchange.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel amqpPublisher
	closer  func() error
	queue   string
}

// NewRabbitMQClient dials url and declares queue as durable.
func NewRabbitMQClient(url, queue string) (*RabbitMQClient, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("rabbitmq url required")
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return nil, errors.New("queue name required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		closer:  ch.Close,
		queue:   queue,
	}, nil
}

// Send publishes msg as a persistent JSON message typed by its kind.
func (r *RabbitMQClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode rabbitmq message: %w", err)
	}
	err = r.channel.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         msg.Kind,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (r *RabbitMQClient) Close() error {
	var errs []error
	if r.closer != nil {
		errs = append(errs, r.closer())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}

var _ Client = (*RabbitMQClient)(nil)
