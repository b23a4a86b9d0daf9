package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueName is the durable queue activity records are published to.
const QueueName = "contacts.activity"

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher forwards records to RabbitMQ as persistent JSON messages.
// A single channel is shared; amqp channels are not safe for concurrent
// publishing, so sends are serialized.
type AMQPPublisher struct {
	mu    sync.Mutex
	ch    channel
	queue string
}

// NewAMQPPublisher opens a channel on conn and declares the activity queue.
func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", QueueName, err)
	}
	return &AMQPPublisher{ch: ch, queue: QueueName}, nil
}

// Publish sends the record to the queue via the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    record.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
}

// Close releases the channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}
