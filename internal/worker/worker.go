package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expense_tracker/internal/expense"
	"expense_tracker/internal/observability"
	"expense_tracker/internal/queue"

	"github.com/jmoiron/sqlx"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Republisher is the publishing half of an AMQP channel.
type Republisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer turns expense events from the queue into audit rows.
type Consumer struct {
	db         *sqlx.DB
	repo       expense.AuditRepositoryInterface
	metrics    *observability.Metrics
	queue      string
	maxRetries int32
}

func NewConsumer(db *sqlx.DB, repo expense.AuditRepositoryInterface, metrics *observability.Metrics, queueName string, maxRetries int32) *Consumer {
	return &Consumer{
		db:         db,
		repo:       repo,
		metrics:    metrics,
		queue:      queueName,
		maxRetries: maxRetries,
	}
}

func republishWithRetry(ctx context.Context, ch Republisher, msg *amqp.Delivery, retryCount int32) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Create new headers with incremented retry count
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[queue.RetryHeader] = retryCount

	return ch.PublishWithContext(
		ctx,
		"",             // exchange
		msg.RoutingKey, // routing key (queue name)
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageId,
			Body:         msg.Body,
			Headers:      headers,
		},
	)
}

// StartWorker consumes the queue until ctx is cancelled or the channel closes.
func (c *Consumer) StartWorker(ctx context.Context, conn *amqp.Connection, id int) error {
	ch, err := queue.CreateChannel(conn)
	if err != nil {
		return fmt.Errorf("worker %d: %w", id, err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("worker %d failed to set QoS: %w", id, err)
	}

	msgs, err := ch.Consume(
		c.queue,
		"",
		false, // manual ACK
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("worker %d failed to start consuming messages: %w", id, err)
	}

	logrus.Infof("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %d stopping", id)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("worker %d: delivery channel closed", id)
			}
			c.Handle(ctx, ch, msg, id)
		}
	}
}

// Handle processes one delivery and settles it: ack on success, republish with
// an incremented retry header on transient failure, drop once retries run out.
func (c *Consumer) Handle(ctx context.Context, ch Republisher, msg amqp.Delivery, workerID int) {
	c.metrics.QueueMessagesConsumed.WithLabelValues(c.queue).Inc()

	event, err := decodeEvent(msg.Body)
	if err != nil {
		logrus.WithError(err).WithField("worker_id", workerID).Error("Dropping undecodable message")
		c.metrics.EventsProcessedTotal.WithLabelValues("unknown", "invalid").Inc()
		_ = msg.Nack(false, false)
		return
	}

	op := string(event.Operation)
	retryCount := queue.RetryCount(msg.Headers)

	startTime := time.Now()
	err = handleEvent(ctx, c.db, c.repo, event, workerID)
	c.metrics.EventProcessingDuration.WithLabelValues(op).Observe(time.Since(startTime).Seconds())

	if err == nil {
		c.metrics.EventsProcessedTotal.WithLabelValues(op, "success").Inc()
		_ = msg.Ack(false)
		return
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"worker_id": workerID,
		"event_id":  event.EventID,
		"retry":     retryCount,
	}).Error("Failed to record expense event")

	// Shutdown interrupted the attempt; hand the message back untouched.
	if ctx.Err() != nil {
		c.requeue(op, &msg, workerID)
		return
	}

	if errors.Is(err, errInvalidEvent) || retryCount >= c.maxRetries {
		c.metrics.EventsProcessedTotal.WithLabelValues(op, "failed").Inc()
		_ = msg.Nack(false, false)
		return
	}

	logrus.Infof("Worker %d: event failed, requeuing (retry %d/%d)", workerID, retryCount+1, c.maxRetries)

	if err := republishWithRetry(ctx, ch, &msg, retryCount+1); err != nil {
		if ctx.Err() != nil {
			c.requeue(op, &msg, workerID)
			return
		}
		logrus.WithError(err).Error("Failed to republish message")
		c.metrics.EventsProcessedTotal.WithLabelValues(op, "failed").Inc()
		_ = msg.Nack(false, false)
		return
	}

	c.metrics.QueueMessagesPublished.WithLabelValues(c.queue).Inc()
	c.metrics.EventsProcessedTotal.WithLabelValues(op, "requeued").Inc()
	_ = msg.Ack(false)
}

func (c *Consumer) requeue(op string, msg *amqp.Delivery, workerID int) {
	logrus.WithField("worker_id", workerID).Info("Worker stopping, returning message to the queue")
	c.metrics.EventsProcessedTotal.WithLabelValues(op, "interrupted").Inc()
	_ = msg.Nack(false, true)
}
