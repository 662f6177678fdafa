package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/cache"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/entitlement"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

type staticTiers map[string]models.Tier

func (s staticTiers) ResolveTier(_ context.Context, userID string) (models.Tier, error) {
	if t, ok := s[userID]; ok {
		return t, nil
	}
	return models.LowestTier, nil
}

// MockUsageRepository is a mock implementation of UsageRepository
type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) GetUsage(ctx context.Context, userID string) (*models.UsageTracker, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageTracker), args.Error(1)
}

func (m *MockUsageRepository) SaveUsage(ctx context.Context, tracker *models.UsageTracker) error {
	args := m.Called(ctx, tracker)
	return args.Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.UsageEvent
}

func (p *recordingPublisher) PublishUsage(_ context.Context, e *models.UsageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func setupRedisUsage(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newTestAccountant(t *testing.T, tiers staticTiers) (*Accountant, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	a := NewAccountant(setupRedisUsage(t), tiers, entitlement.DefaultTable(), NewLocalLocker(), pub, nil,
		Options{RetryAttempts: 2, RetryDelay: time.Millisecond})
	return a, pub
}

func TestCheckAccessDeniedRegardlessOfUsage(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccountant(t, staticTiers{"free": models.TierFree, "basic": models.TierBasic})

	for _, user := range []string{"free", "basic"} {
		d, err := a.Check(ctx, user, models.CategoryVisionSave, 1)
		require.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, models.DecisionAccessDenied, d.Code)
		assert.Equal(t, models.ReasonAccessDenied, d.Reason)
	}

	// Adding usage does not turn access-denied into a limit message.
	_, err := a.Commit(ctx, "free", models.CategoryVisionSave, 3, 900)
	require.NoError(t, err)
	d, err := a.Check(ctx, "free", models.CategoryVisionSave, 1)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccessDenied, d.Code)
}

func TestCheckUniversalCategoryNeverAccessDenied(t *testing.T) {
	rows := entitlement.DefaultTable().Rows()
	for i := range rows {
		if rows[i].Tier == models.TierFree {
			rows[i].MaxItems[models.CategoryHistory] = models.Cap(0)
		}
	}
	table, err := entitlement.New(rows)
	require.NoError(t, err)

	a := NewAccountant(setupRedisUsage(t), staticTiers{}, table, nil, nil, nil, Options{})
	d, err := a.Check(context.Background(), "u1", models.CategoryHistory, 1)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, models.DecisionItemLimit, d.Code)
}

func TestFreeTierItemLimitScenario(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccountant(t, staticTiers{"u1": models.TierFree})

	for i := 0; i < 5; i++ {
		d, err := a.Check(ctx, "u1", models.CategoryUtilitySave, 1)
		require.NoError(t, err)
		require.True(t, d.Allow, "save %d should be allowed", i+1)
		_, err = a.Commit(ctx, "u1", models.CategoryUtilitySave, 1, 200)
		require.NoError(t, err)
	}

	d, err := a.Check(ctx, "u1", models.CategoryUtilitySave, 1)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, models.DecisionItemLimit, d.Code)
	assert.Contains(t, d.Reason, "limit reached")
	assert.Equal(t, models.Cap(50*1024), d.ByteCeiling)
	assert.Equal(t, models.TierFree, d.Tier)
}

func TestCheckIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccountant(t, staticTiers{"u1": models.TierFree})
	_, err := a.Commit(ctx, "u1", models.CategoryUtilitySave, 4, 1000)
	require.NoError(t, err)

	first, err := a.Check(ctx, "u1", models.CategoryUtilitySave, 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := a.Check(ctx, "u1", models.CategoryUtilitySave, 1)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	usage, err := a.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), usage.Items[models.CategoryUtilitySave])
}

func TestCheckStorageLimit(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccountant(t, staticTiers{"u1": models.TierFree})
	_, err := a.Commit(ctx, "u1", models.CategoryUtilitySave, 1, 50*1024)
	require.NoError(t, err)

	d, err := a.Check(ctx, "u1", models.CategoryUtilitySave, 1)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, models.DecisionStorageLimit, d.Code)
	assert.Equal(t, models.ReasonStorageLimit, d.Reason)
}

func TestCheckItemDeltaAboveOne(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccountant(t, staticTiers{"u1": models.TierFree})
	_, err := a.Commit(ctx, "u1", models.CategoryUtilitySave, 3, 10)
	require.NoError(t, err)

	d, err := a.Check(ctx, "u1", models.CategoryUtilitySave, 2)
	require.NoError(t, err)
	assert.True(t, d.Allow)

	d, err = a.Check(ctx, "u1", models.CategoryUtilitySave, 3)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, models.DecisionItemLimit, d.Code)
}

func TestUnlimitedAlwaysAllowed(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccountant(t, staticTiers{"vip": models.TierUnlimited})

	for _, c := range models.AllCategories() {
		_, err := a.Commit(ctx, "vip", c, 1_000_000, 1<<40)
		require.NoError(t, err)
		d, err := a.Check(ctx, "vip", c, 1)
		require.NoError(t, err)
		assert.True(t, d.Allow, "category %s", c)
		assert.True(t, d.ByteCeiling.IsUnbounded())
	}
}

func TestCheckRejectsUnknownCategory(t *testing.T) {
	a, _ := newTestAccountant(t, staticTiers{})
	_, err := a.Check(context.Background(), "u1", models.Category("bogus"), 1)
	assert.ErrorIs(t, err, models.ErrUnknownCategory)
}

func TestCommitPublishesEvents(t *testing.T) {
	ctx := context.Background()
	a, pub := newTestAccountant(t, staticTiers{"u1": models.TierPro})

	tracker, err := a.Commit(ctx, "u1", models.CategoryVisionSave, 1, 640)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tracker.Items[models.CategoryVisionSave])
	assert.Equal(t, models.TierPro, tracker.Tier)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "u1", pub.events[0].UserID)
	assert.Equal(t, models.CategoryVisionSave, pub.events[0].Category)
	assert.Equal(t, int64(640), pub.events[0].ByteDelta)
	assert.NotEmpty(t, pub.events[0].ID)
}

func TestCommitRejectsNegativeDeltas(t *testing.T) {
	ctx := context.Background()
	a, pub := newTestAccountant(t, staticTiers{})
	_, err := a.Commit(ctx, "u1", models.CategoryUtilitySave, 5, 665)
	require.NoError(t, err)

	_, err = a.Commit(ctx, "u1", models.CategoryUtilitySave, -5, 0)
	assert.ErrorIs(t, err, ErrNegativeDelta)
	_, err = a.Commit(ctx, "u1", models.CategoryUtilitySave, 0, -665)
	assert.ErrorIs(t, err, ErrNegativeDelta)
	_, err = a.CommitAll(ctx, "u1",
		Delta{Category: models.CategoryUtilitySave, Items: 1},
		Delta{Category: models.CategoryHistory, Items: -1})
	assert.ErrorIs(t, err, ErrNegativeDelta)

	usage, err := a.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.Items[models.CategoryUtilitySave])
	assert.Equal(t, int64(665), usage.Bytes[models.CategoryUtilitySave])
	assert.Len(t, pub.events, 1)
}

func TestReleaseClampsAtZero(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccountant(t, staticTiers{})
	_, err := a.Commit(ctx, "u1", models.CategoryHistory, 1, 100)
	require.NoError(t, err)

	tracker, err := a.Release(ctx, "u1", Delta{Category: models.CategoryHistory, Items: -2, Bytes: -500})
	require.NoError(t, err)
	assert.Equal(t, int64(0), tracker.Items[models.CategoryHistory])
	assert.Equal(t, int64(0), tracker.Bytes[models.CategoryHistory])
}

func TestUsageReadFailureFallsBackToFreshTracker(t *testing.T) {
	repo := new(MockUsageRepository)
	repo.On("GetUsage", mock.Anything, "u1").Return(nil, errors.New("corrupt"))

	a := NewAccountant(repo, staticTiers{"u1": models.TierBasic}, entitlement.DefaultTable(), nil, nil, nil,
		Options{RetryAttempts: 2, RetryDelay: time.Millisecond})

	tracker, err := a.Usage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.TierBasic, tracker.Tier)
	assert.Equal(t, int64(0), tracker.Items[models.CategoryHistory])
	repo.AssertNumberOfCalls(t, "GetUsage", 2)
}

func TestCommitWriteFailureIsHardError(t *testing.T) {
	repo := new(MockUsageRepository)
	repo.On("GetUsage", mock.Anything, "u1").Return(nil, models.ErrNotFound)
	repo.On("SaveUsage", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	pub := &recordingPublisher{}
	a := NewAccountant(repo, staticTiers{}, entitlement.DefaultTable(), nil, pub, nil,
		Options{RetryAttempts: 3, RetryDelay: time.Millisecond})

	_, err := a.Commit(context.Background(), "u1", models.CategoryHistory, 1, 10)
	assert.ErrorIs(t, err, ErrStorage)
	repo.AssertNumberOfCalls(t, "SaveUsage", 3)
	repo.AssertNumberOfCalls(t, "GetUsage", 1)
	assert.Empty(t, pub.events)
}

func TestCommitReadFailureDoesNotOverwriteCounters(t *testing.T) {
	stored := models.NewUsageTracker("u1", models.TierFree)
	stored.Items[models.CategoryUtilitySave] = 5
	stored.Items[models.CategoryHistory] = 5

	repo := new(MockUsageRepository)
	repo.On("GetUsage", mock.Anything, "u1").Return(nil, errors.New("connection reset")).Once()
	repo.On("GetUsage", mock.Anything, "u1").Return(stored, nil)

	a := NewAccountant(repo, staticTiers{}, entitlement.DefaultTable(), nil, nil, nil,
		Options{RetryAttempts: 1, RetryDelay: time.Millisecond})

	_, err := a.Commit(context.Background(), "u1", models.CategoryUtilitySave, 1, 10)
	assert.ErrorIs(t, err, ErrStorage)
	repo.AssertNotCalled(t, "SaveUsage", mock.Anything, mock.Anything)

	// A plain read after the failure still sees the stored counters.
	usage, err := a.Usage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.Items[models.CategoryUtilitySave])
}

func TestReplaceReadFailureIsHardError(t *testing.T) {
	repo := new(MockUsageRepository)
	repo.On("GetUsage", mock.Anything, "u1").Return(nil, errors.New("connection reset"))

	a := NewAccountant(repo, staticTiers{}, entitlement.DefaultTable(), nil, nil, nil,
		Options{RetryAttempts: 2, RetryDelay: time.Millisecond})

	_, err := a.Replace(context.Background(), "u1",
		map[models.Category]int64{models.CategoryHistory: 1}, map[models.Category]int64{})
	assert.ErrorIs(t, err, ErrStorage)
	repo.AssertNumberOfCalls(t, "GetUsage", 2)
	repo.AssertNotCalled(t, "SaveUsage", mock.Anything, mock.Anything)
}

func TestUsageRefreshesTier(t *testing.T) {
	ctx := context.Background()
	tiers := staticTiers{"u1": models.TierFree}
	a, _ := newTestAccountant(t, tiers)
	_, err := a.Commit(ctx, "u1", models.CategoryUtilitySave, 5, 10)
	require.NoError(t, err)

	tiers["u1"] = models.TierPro
	d, err := a.Check(ctx, "u1", models.CategoryUtilitySave, 1)
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Equal(t, models.TierPro, d.Tier)
}

func TestReplaceOverwritesCounters(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccountant(t, staticTiers{})
	_, err := a.Commit(ctx, "u1", models.CategoryHistory, 9, 900)
	require.NoError(t, err)

	tracker, err := a.Replace(ctx, "u1",
		map[models.Category]int64{models.CategoryHistory: 2},
		map[models.Category]int64{models.CategoryHistory: 300})
	require.NoError(t, err)
	assert.Equal(t, int64(2), tracker.Items[models.CategoryHistory])
	assert.Equal(t, int64(0), tracker.Items[models.CategoryUtilitySave])

	usage, err := a.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), usage.Bytes[models.CategoryHistory])
}
