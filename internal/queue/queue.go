package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/config"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

const (
	UsageQueueName = "usage_events"
	ExchangeName   = "promptdesk"
)

// Queue carries committed usage events from the API to the worker
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
	logger  *logging.Logger
}

// New creates a new queue client
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &Queue{
		conn:    conn,
		channel: channel,
		logger:  logger.WithComponent("queue"),
	}
	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) declare() error {
	// Declare exchange
	err := q.channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := q.SetupDeadLetterQueue(); err != nil {
		return err
	}

	// Declare queue
	_, err = q.channel.QueueDeclare(
		UsageQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    DeadLetterExchangeName,
			"x-dead-letter-routing-key": DeadLetterQueueName,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = q.channel.QueueBind(
		UsageQueueName,
		UsageQueueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishUsage publishes a committed usage event
func (q *Queue) PublishUsage(ctx context.Context, event *models.UsageEvent) error {
	err := q.publish(ctx, ExchangeName, UsageQueueName, event, nil, "")
	if err != nil {
		metrics.RecordUsageEvent("published", "failed")
		return err
	}
	metrics.RecordUsageEvent("published", "success")
	return nil
}

func (q *Queue) publish(ctx context.Context, exchange, key string, event *models.UsageEvent, headers amqp.Table, expiration string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal usage event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	q.mu.Lock()
	defer q.mu.Unlock()

	err = q.channel.PublishWithContext(ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.ID,
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
			Expiration:   expiration,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish usage event: %w", err)
	}

	return nil
}

// ConsumeUsage starts consuming usage events. Handler failures are retried
// with backoff and dead-lettered after MaxRetries.
func (q *Queue) ConsumeUsage(ctx context.Context, handler func(context.Context, *models.UsageEvent) error) error {
	// Set QoS to limit concurrent processing
	err := q.channel.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		UsageQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				q.handle(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler func(context.Context, *models.UsageEvent) error) {
	event, err := decodeUsageEvent(msg.Body)
	if err != nil {
		// Malformed payloads go straight to the dead-letter queue.
		q.logger.ErrorWithErr("discarding malformed usage event", err)
		metrics.RecordUsageEvent("consumed", "malformed")
		msg.Nack(false, false)
		return
	}

	if err := handler(ctx, event); err != nil {
		metrics.RecordUsageEvent("consumed", "failed")
		retries := retryCount(msg.Headers)
		if rerr := q.PublishToRetryQueue(ctx, event, retries, err.Error()); rerr != nil {
			q.logger.ErrorWithErr("failed to schedule usage event retry", rerr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	metrics.RecordUsageEvent("consumed", "success")
	msg.Ack(false)
}

func decodeUsageEvent(body []byte) (*models.UsageEvent, error) {
	var event models.UsageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage event: %w", err)
	}
	if event.ID == "" || event.UserID == "" {
		return nil, fmt.Errorf("usage event missing id or user")
	}
	if _, err := models.ParseCategory(string(event.Category)); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(UsageQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
