package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"expense_tracker/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends persistent JSON messages to one durable queue over a
// single channel, reopened if the broker closes it.
type Publisher struct {
	conn    *amqp.Connection
	queue   string
	metrics *observability.Metrics

	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection, queueName string, metrics *observability.Metrics) (*Publisher, error) {
	p := &Publisher{conn: conn, queue: queueName, metrics: metrics}
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

// channel returns the open channel, declaring the queue on first use. Callers hold mu or own p exclusively.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	ch, err := CreateChannel(p.conn)
	if err != nil {
		return nil, err
	}
	if _, err := DeclareQueue(ch, p.queue); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

// PublishJSON marshals v and publishes it with the given message id.
func (p *Publisher) PublishJSON(ctx context.Context, messageID string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.metrics.QueueMessagesPublished.WithLabelValues(p.queue).Inc()
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		return nil
	}
	return p.ch.Close()
}
