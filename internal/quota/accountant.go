// Package quota decides whether tracked actions may proceed and keeps the
// per-user usage counters those decisions are based on.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/entitlement"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/tracing"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

var (
	// ErrStorage wraps persistence failures that must abort the guarded action
	ErrStorage = errors.New("usage storage failure")
	// ErrNegativeDelta is returned by Commit for negative deltas; usage is
	// given back only through Release
	ErrNegativeDelta = errors.New("commit deltas must not be negative")
)

// UsageRepository persists usage trackers
type UsageRepository interface {
	// GetUsage returns models.ErrNotFound when the user has no tracker yet.
	GetUsage(ctx context.Context, userID string) (*models.UsageTracker, error)
	SaveUsage(ctx context.Context, tracker *models.UsageTracker) error
}

// TierResolver resolves a user's current tier
type TierResolver interface {
	ResolveTier(ctx context.Context, userID string) (models.Tier, error)
}

// Publisher fans committed usage out to other consumers
type Publisher interface {
	PublishUsage(ctx context.Context, event *models.UsageEvent) error
}

// NopPublisher drops usage events
type NopPublisher struct{}

func (NopPublisher) PublishUsage(context.Context, *models.UsageEvent) error { return nil }

// Options tunes persistence retries
type Options struct {
	RetryAttempts uint
	RetryDelay    time.Duration
}

// Accountant implements check/commit against the entitlement table
type Accountant struct {
	usage     UsageRepository
	tiers     TierResolver
	table     *entitlement.Table
	locker    Locker
	publisher Publisher
	logger    *logging.Logger
	attempts  uint
	delay     time.Duration
	now       func() time.Time
}

// NewAccountant creates an accountant
func NewAccountant(usage UsageRepository, tiers TierResolver, table *entitlement.Table, locker Locker, publisher Publisher, logger *logging.Logger, opts Options) *Accountant {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	return &Accountant{
		usage:     usage,
		tiers:     tiers,
		table:     table,
		locker:    locker,
		publisher: publisher,
		logger:    logger.WithComponent("quota"),
		attempts:  opts.RetryAttempts,
		delay:     opts.RetryDelay,
		now:       time.Now,
	}
}

// Usage loads the user's tracker with its tier refreshed. Read failures fall
// back to a fresh tracker; only tier resolution errors are returned.
func (a *Accountant) Usage(ctx context.Context, userID string) (*models.UsageTracker, error) {
	tier, err := a.tiers.ResolveTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	tracker, err := a.load(ctx, userID, tier)
	if err != nil {
		a.logger.WithUserID(userID).ErrorWithErr("usage read failed, starting from an empty tracker", err)
		tracker = models.NewUsageTracker(userID, tier)
	}
	return tracker, nil
}

// usageForWrite is Usage for read-modify-write paths. A failed read is an
// ErrStorage instead of an empty tracker, which would overwrite the stored counters.
func (a *Accountant) usageForWrite(ctx context.Context, userID string) (*models.UsageTracker, error) {
	tier, err := a.tiers.ResolveTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	tracker, err := a.load(ctx, userID, tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return tracker, nil
}

// load returns a fresh tracker for users without one yet
func (a *Accountant) load(ctx context.Context, userID string, tier models.Tier) (*models.UsageTracker, error) {
	var tracker *models.UsageTracker
	err := a.retry(ctx, func() error {
		t, err := a.usage.GetUsage(ctx, userID)
		if errors.Is(err, models.ErrNotFound) {
			return retry.Unrecoverable(err)
		}
		if err != nil {
			return err
		}
		tracker = t
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		tracker = models.NewUsageTracker(userID, tier)
	default:
		return nil, err
	}

	tracker.UserID = userID
	tracker.Tier = tier
	tracker.Normalize()
	return tracker, nil
}

// Check evaluates whether itemDelta new items may be added to category. It
// never mutates usage. Checks run in a fixed order and the first failure wins.
func (a *Accountant) Check(ctx context.Context, userID string, category models.Category, itemDelta int64) (*models.Decision, error) {
	span, ctx := tracing.StartSpan(ctx, "quota.check")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "category", string(category))

	if _, err := models.ParseCategory(string(category)); err != nil {
		return nil, err
	}

	tracker, err := a.Usage(ctx, userID)
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}

	decision := a.evaluate(tracker, category, itemDelta)
	metrics.QuotaDecisionsTotal.WithLabelValues(string(category), string(decision.Tier), string(decision.Code)).Inc()
	a.logger.LogQuotaDecision(userID, string(category), string(decision.Tier), string(decision.Code), decision.Allow)
	return decision, nil
}

func (a *Accountant) evaluate(tracker *models.UsageTracker, category models.Category, itemDelta int64) *models.Decision {
	row := a.table.LimitsFor(tracker.Tier)
	items := row.Items(category)
	ceiling := row.Bytes(category)

	if !row.GrantsAccess(category) {
		return models.Denied(models.DecisionAccessDenied, category, tracker.Tier, ceiling)
	}
	if itemDelta < 1 {
		itemDelta = 1
	}
	if !items.Allows(tracker.Items[category], itemDelta) {
		return models.Denied(models.DecisionItemLimit, category, tracker.Tier, ceiling)
	}
	if ceiling.Exceeded(tracker.Bytes[category]) {
		return models.Denied(models.DecisionStorageLimit, category, tracker.Tier, ceiling)
	}
	return models.Allowed(category, tracker.Tier, ceiling)
}

// Commit applies confirmed usage and persists it. Call only after the guarded
// action has succeeded. Negative deltas are rejected with ErrNegativeDelta.
func (a *Accountant) Commit(ctx context.Context, userID string, category models.Category, itemDelta, byteDelta int64) (*models.UsageTracker, error) {
	unlock, err := a.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer unlock()

	return a.commitLocked(ctx, userID, false, []Delta{{category, itemDelta, byteDelta}})
}

// Delta is a change to one category's counters
type Delta struct {
	Category models.Category
	Items    int64
	Bytes    int64
}

// CommitAll applies several deltas in one write
func (a *Accountant) CommitAll(ctx context.Context, userID string, deltas ...Delta) (*models.UsageTracker, error) {
	unlock, err := a.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer unlock()

	return a.commitLocked(ctx, userID, false, deltas)
}

// Release gives back usage. Negative deltas are clamped so counters stop at
// zero when they have drifted below the released amount.
func (a *Accountant) Release(ctx context.Context, userID string, deltas ...Delta) (*models.UsageTracker, error) {
	unlock, err := a.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer unlock()

	return a.commitLocked(ctx, userID, true, deltas)
}

func (a *Accountant) commitLocked(ctx context.Context, userID string, clamp bool, deltas []Delta) (*models.UsageTracker, error) {
	span, ctx := tracing.StartSpan(ctx, "quota.commit")
	defer tracing.FinishSpan(span)

	for _, d := range deltas {
		if _, err := models.ParseCategory(string(d.Category)); err != nil {
			return nil, err
		}
		if !clamp && (d.Items < 0 || d.Bytes < 0) {
			return nil, fmt.Errorf("%s: %w", d.Category, ErrNegativeDelta)
		}
	}

	tracker, err := a.usageForWrite(ctx, userID)
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}

	updated := tracker.Clone()
	for i, d := range deltas {
		if clamp {
			d.Items = max(d.Items, -updated.Items[d.Category])
			d.Bytes = max(d.Bytes, -updated.Bytes[d.Category])
			deltas[i] = d
		}
		if err := updated.Apply(d.Category, d.Items, d.Bytes); err != nil {
			return nil, fmt.Errorf("%s: %w", d.Category, err)
		}
	}
	updated.UpdatedAt = a.now().UTC()

	start := time.Now()
	err = a.retry(ctx, func() error {
		return a.usage.SaveUsage(ctx, updated)
	})
	metrics.StorageOperationDuration.WithLabelValues("save_usage").Observe(time.Since(start).Seconds())
	if err != nil {
		tracing.LogError(span, err)
		metrics.UsageCommitsTotal.WithLabelValues("failed").Inc()
		for _, d := range deltas {
			a.logger.LogUsageCommit(userID, string(d.Category), d.Items, d.Bytes, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	metrics.UsageCommitsTotal.WithLabelValues("success").Inc()

	for _, d := range deltas {
		a.logger.LogUsageCommit(userID, string(d.Category), d.Items, d.Bytes, nil)
		a.publish(ctx, updated, d)
	}
	return updated, nil
}

func (a *Accountant) publish(ctx context.Context, tracker *models.UsageTracker, d Delta) {
	event := &models.UsageEvent{
		ID:         uuid.NewString(),
		UserID:     tracker.UserID,
		Tier:       tracker.Tier,
		Category:   d.Category,
		ItemDelta:  d.Items,
		ByteDelta:  d.Bytes,
		OccurredAt: tracker.UpdatedAt,
	}
	if err := a.publisher.PublishUsage(ctx, event); err != nil {
		a.logger.WithUserID(tracker.UserID).ErrorWithErr("failed to publish usage event", err)
	}
}

// CountFunc recomputes per-category item counts and byte totals from the
// source of truth
type CountFunc func(ctx context.Context) (items, bytes map[models.Category]int64, err error)

// Reconcile recounts a user's usage with count and persists the result when it
// differs from the stored counters. count runs under the user's lock, so no
// commit can land between the recount and the write. changed reports whether
// the counters were rewritten.
func (a *Accountant) Reconcile(ctx context.Context, userID string, count CountFunc) (tracker *models.UsageTracker, changed bool, err error) {
	span, ctx := tracing.StartSpan(ctx, "quota.reconcile")
	defer tracing.FinishSpan(span)

	unlock, err := a.locker.Lock(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer unlock()

	current, err := a.usageForWrite(ctx, userID)
	if err != nil {
		tracing.LogError(span, err)
		return nil, false, err
	}

	items, bytes, err := count(ctx)
	if err != nil {
		return nil, false, err
	}

	fresh := models.NewUsageTracker(userID, current.Tier)
	for _, c := range models.AllCategories() {
		if items[c] < 0 || bytes[c] < 0 {
			return nil, false, models.ErrNegativeUsage
		}
		fresh.Items[c] = items[c]
		fresh.Bytes[c] = bytes[c]
	}
	if sameCounters(current, fresh) {
		return current, false, nil
	}
	fresh.UpdatedAt = a.now().UTC()

	if err := a.retry(ctx, func() error { return a.usage.SaveUsage(ctx, fresh) }); err != nil {
		tracing.LogError(span, err)
		return nil, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return fresh, true, nil
}

// Replace overwrites a user's counters
func (a *Accountant) Replace(ctx context.Context, userID string, items, bytes map[models.Category]int64) (*models.UsageTracker, error) {
	tracker, _, err := a.Reconcile(ctx, userID, func(context.Context) (map[models.Category]int64, map[models.Category]int64, error) {
		return items, bytes, nil
	})
	return tracker, err
}

func sameCounters(a, b *models.UsageTracker) bool {
	for _, c := range models.AllCategories() {
		if a.Items[c] != b.Items[c] || a.Bytes[c] != b.Bytes[c] {
			return false
		}
	}
	return true
}

func (a *Accountant) retry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(a.attempts),
		retry.Delay(a.delay),
		retry.LastErrorOnly(true),
	)
}
