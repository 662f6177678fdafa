package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// MockEventRecorder is a mock implementation of EventRecorder
type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) RecordUsageEvent(ctx context.Context, event *models.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func testEvent() *models.UsageEvent {
	return &models.UsageEvent{
		ID:         "evt-1",
		UserID:     "user-1",
		Tier:       models.TierFree,
		Category:   models.CategoryUtilitySave,
		ItemDelta:  1,
		ByteDelta:  256,
		OccurredAt: time.Now(),
	}
}

func TestLedgerRecordsEvent(t *testing.T) {
	rec := new(MockEventRecorder)
	event := testEvent()
	rec.On("RecordUsageEvent", mock.Anything, event).Return(nil)

	l := &ledger{recorder: rec, logger: logging.NewNopLogger()}
	assert.NoError(t, l.Handle(context.Background(), event))
	rec.AssertExpectations(t)
}

func TestLedgerPropagatesFailure(t *testing.T) {
	rec := new(MockEventRecorder)
	rec.On("RecordUsageEvent", mock.Anything, mock.Anything).Return(errors.New("db down"))

	l := &ledger{recorder: rec, logger: logging.NewNopLogger()}
	err := l.Handle(context.Background(), testEvent())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "evt-1")
}

func TestLedgerRejectsIncompleteEvent(t *testing.T) {
	rec := new(MockEventRecorder)
	l := &ledger{recorder: rec, logger: logging.NewNopLogger()}

	event := testEvent()
	event.UserID = ""
	assert.Error(t, l.Handle(context.Background(), event))
	rec.AssertNotCalled(t, "RecordUsageEvent", mock.Anything, mock.Anything)
}

func TestLedgerWithoutRecorder(t *testing.T) {
	l := &ledger{logger: logging.NewNopLogger()}
	assert.NoError(t, l.Handle(context.Background(), testEvent()))
}
