package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

type staticAccounts struct {
	ids []string
	err error
}

func (s staticAccounts) ListAccountIDs(ctx context.Context) ([]string, error) {
	return s.ids, s.err
}

// MockReconciler is a mock implementation of Reconciler
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, userID string) (*models.UsageTracker, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageTracker), args.Error(1)
}

func TestRunOnce(t *testing.T) {
	rec := new(MockReconciler)
	rec.On("Reconcile", mock.Anything, "u1").Return(models.NewUsageTracker("u1", models.TierFree), nil)
	rec.On("Reconcile", mock.Anything, "u2").Return(nil, errors.New("boom"))
	rec.On("Reconcile", mock.Anything, "u3").Return(models.NewUsageTracker("u3", models.TierPro), nil)

	s := NewScheduler(staticAccounts{ids: []string{"u1", "u2", "u3"}}, rec, nil)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Accounts)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, report, s.LastRun())
	rec.AssertExpectations(t)
}

func TestRunOnceListFailure(t *testing.T) {
	rec := new(MockReconciler)
	s := NewScheduler(staticAccounts{err: errors.New("db down")}, rec, nil)

	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
	rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestRunOnceCancelled(t *testing.T) {
	rec := new(MockReconciler)
	s := NewScheduler(staticAccounts{ids: []string{"u1"}}, rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type blockingReconciler struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingReconciler) Reconcile(ctx context.Context, userID string) (*models.UsageTracker, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil, nil
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	rec := &blockingReconciler{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(staticAccounts{ids: []string{"u1"}}, rec, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()

	<-rec.started
	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(rec.release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first pass did not finish")
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(staticAccounts{}, new(MockReconciler), nil)
	assert.Error(t, s.Start("not a schedule"))
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(staticAccounts{}, new(MockReconciler), nil)
	require.NoError(t, s.Start("@every 1h"))
	s.Stop()
}
