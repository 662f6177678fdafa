package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

const (
	DeadLetterQueueName    = "usage_events_dlq"
	DeadLetterExchangeName = "promptdesk_dlq"
	RetryQueueName         = "usage_events_retry"
	MaxRetries             = 5
)

// SetupDeadLetterQueue sets up the dead letter queue infrastructure
func (q *Queue) SetupDeadLetterQueue() error {
	// Declare dead letter exchange
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	// Declare dead letter queue
	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	// Bind DLQ to exchange
	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Expired retry messages flow back to the main queue
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": UsageQueueName,
	}

	_, err = q.channel.QueueDeclare(
		RetryQueueName,
		true,
		false,
		false,
		false,
		retryArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	return nil
}

// PublishToRetryQueue schedules an event for redelivery, or dead-letters it
// once it has been retried MaxRetries times
func (q *Queue) PublishToRetryQueue(ctx context.Context, event *models.UsageEvent, retries int, reason string) error {
	if retries >= MaxRetries {
		return q.PublishToDeadLetterQueue(ctx, event, reason)
	}

	delay := calculateBackoffDelay(retries)
	headers := amqp.Table{
		"x-retry-count": int32(retries + 1),
	}
	if err := q.publish(ctx, "", RetryQueueName, event, headers, fmt.Sprintf("%d", delay.Milliseconds())); err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}

	q.logger.WithUserID(event.UserID).Warnf("usage event %s queued for retry #%d in %v", event.ID, retries+1, delay)
	return nil
}

// PublishToDeadLetterQueue parks an event that could not be processed
func (q *Queue) PublishToDeadLetterQueue(ctx context.Context, event *models.UsageEvent, reason string) error {
	headers := amqp.Table{
		"x-failure-reason": reason,
		"x-failed-at":      time.Now().Format(time.RFC3339),
	}
	if err := q.publish(ctx, DeadLetterExchangeName, DeadLetterQueueName, event, headers, ""); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	q.logger.WithUserID(event.UserID).Warnf("usage event %s moved to dead letter queue: %s", event.ID, reason)
	return nil
}

// ConsumeDLQ consumes dead-lettered events for manual replay
func (q *Queue) ConsumeDLQ(ctx context.Context, handler func(*models.UsageEvent, string) error) error {
	msgs, err := q.channel.Consume(
		DeadLetterQueueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register DLQ consumer: %w", err)
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

				var event models.UsageEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					msg.Ack(false)
					continue
				}

				reason := ""
				if val, ok := msg.Headers["x-failure-reason"].(string); ok {
					reason = val
				}

				if err := handler(&event, reason); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// RetryFromDLQ republishes a dead-lettered event to the main queue
func (q *Queue) RetryFromDLQ(ctx context.Context, event *models.UsageEvent) error {
	return q.publish(ctx, ExchangeName, UsageQueueName, event, nil, "")
}

func retryCount(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// calculateBackoffDelay calculates exponential backoff delay
func calculateBackoffDelay(retries int) time.Duration {
	// Exponential backoff: 5s, 10s, 20s, 40s, 80s
	baseDelay := 5 * time.Second
	delay := baseDelay * (1 << retries)

	// Cap at 5 minutes
	if delay > 5*time.Minute {
		delay = 5 * time.Minute
	}

	return delay
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}
