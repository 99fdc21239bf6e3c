package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"societycore/pkg/domain"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes each message to a durable queue named <prefix>.<channel>.
type RabbitMQ struct {
	conn   *amqp.Connection
	ch     Channel
	prefix string
}

// DialRabbitMQ connects to url and declares one queue per delivery channel.
func DialRabbitMQ(url, prefix string) (*RabbitMQ, error) {
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	r, err := NewRabbitMQWithChannel(ch, prefix)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	r.conn = conn
	return r, nil
}

// NewRabbitMQWithChannel wraps an open channel.
func NewRabbitMQWithChannel(ch Channel, prefix string) (*RabbitMQ, error) {
	if prefix == "" {
		prefix = "societycore.notify"
	}
	r := &RabbitMQ{ch: ch, prefix: prefix}
	for _, method := range []domain.TwoFactorMethod{domain.TwoFactorEmail, domain.TwoFactorSMS, domain.TwoFactorWhatsApp} {
		if _, err := ch.QueueDeclare(r.QueueName(method), true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", r.QueueName(method), err)
		}
	}
	return r, nil
}

// QueueName returns the queue messages for method are routed to.
func (r *RabbitMQ) QueueName(method domain.TwoFactorMethod) string {
	return r.prefix + "." + string(method)
}

// Dispatch implements Dispatcher.
func (r *RabbitMQ) Dispatch(ctx context.Context, msg Message) error {
	if _, err := domain.ParseTwoFactorMethod(string(msg.Channel)); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	err = r.ch.PublishWithContext(ctx, "", r.QueueName(msg.Channel), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(msg.Purpose),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Channel, err)
	}
	return nil
}

// Close closes the channel and, when owned, the connection.
func (r *RabbitMQ) Close() error {
	err := r.ch.Close()
	if r.conn != nil {
		err = errors.Join(err, r.conn.Close())
	}
	return err
}
