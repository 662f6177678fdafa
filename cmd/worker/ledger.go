package main

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// EventRecorder appends usage events to durable storage
type EventRecorder interface {
	RecordUsageEvent(ctx context.Context, event *models.UsageEvent) error
}

// ledger records consumed usage events. Without a recorder (redis
// persistence) events are only logged.
type ledger struct {
	recorder EventRecorder
	logger   *logging.Logger
}

// Handle processes one usage event
func (l *ledger) Handle(ctx context.Context, event *models.UsageEvent) error {
	if event.ID == "" || event.UserID == "" {
		return fmt.Errorf("usage event missing id or user")
	}

	if l.recorder == nil {
		l.logger.WithUserID(event.UserID).Debugf("usage event %s: %s %+d items %+d bytes",
			event.ID, event.Category, event.ItemDelta, event.ByteDelta)
		return nil
	}

	if err := l.recorder.RecordUsageEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record usage event %s: %w", event.ID, err)
	}
	return nil
}
