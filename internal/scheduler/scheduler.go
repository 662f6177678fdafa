package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// ErrRunInProgress is returned when a reconciliation pass is already running
var ErrRunInProgress = errors.New("reconciliation already in progress")

// AccountLister enumerates the accounts to reconcile
type AccountLister interface {
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// Reconciler repairs one user's usage counters
type Reconciler interface {
	Reconcile(ctx context.Context, userID string) (*models.UsageTracker, error)
}

// Report summarizes one reconciliation pass
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Accounts  int           `json:"accounts"`
	Failed    int           `json:"failed"`
}

// ReconcileScheduler periodically recomputes every account's counters from
// their saved items
type ReconcileScheduler struct {
	cron       *cron.Cron
	accounts   AccountLister
	reconciler Reconciler
	logger     *logging.Logger

	mu      sync.Mutex
	running bool
	last    Report

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new reconciliation scheduler
func NewScheduler(accounts AccountLister, reconciler Reconciler, logger *logging.Logger) *ReconcileScheduler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &ReconcileScheduler{
		cron:       cron.New(),
		accounts:   accounts,
		reconciler: reconciler,
		logger:     logger.WithComponent("scheduler"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the pass under a cron spec (e.g. "@daily", "0 3 * * *")
// and starts the scheduler
func (s *ReconcileScheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunOnce(s.ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			s.logger.ErrorWithErr("scheduled reconciliation failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}

	s.cron.Start()
	s.logger.Infof("Reconcile scheduler started (%s)", spec)
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish
func (s *ReconcileScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Reconcile scheduler stopped")
}

// RunOnce reconciles every account. A failing account is logged and counted
// without aborting the pass.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) (Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Report{}, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	report := Report{StartedAt: time.Now()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		s.mu.Lock()
		s.running = false
		s.last = report
		s.mu.Unlock()
	}()

	ids, err := s.accounts.ListAccountIDs(ctx)
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("failed").Inc()
		return report, fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			metrics.ReconcileRunsTotal.WithLabelValues("cancelled").Inc()
			return report, ctx.Err()
		}
		report.Accounts++
		if _, err := s.reconciler.Reconcile(ctx, id); err != nil {
			report.Failed++
			s.logger.WithUserID(id).ErrorWithErr("failed to reconcile usage", err)
		}
	}

	status := "success"
	if report.Failed > 0 {
		status = "partial"
	}
	metrics.ReconcileRunsTotal.WithLabelValues(status).Inc()
	s.logger.Infof("Reconciled %d accounts (%d failed)", report.Accounts, report.Failed)

	return report, nil
}

// LastRun returns the report of the most recent pass
func (s *ReconcileScheduler) LastRun() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last
}
