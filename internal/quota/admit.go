package quota

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// DeniedError is returned by Admit when a check refuses the action
type DeniedError struct {
	Decision *models.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied for %s: %s", e.Decision.Category, e.Decision.Tier, e.Decision.Reason)
}

// Admit runs action only if the user may add itemDelta items to category and,
// for feature categories, to history as well. Usage is committed to every
// checked category once action succeeds. The user's lock is held throughout
// so concurrent requests cannot both pass the same check.
func (a *Accountant) Admit(ctx context.Context, userID string, category models.Category, itemDelta, byteDelta int64, action func(ctx context.Context) error) (*models.UsageTracker, error) {
	categories := []models.Category{category}
	if category.IsFeature() {
		categories = append(categories, models.CategoryHistory)
	}

	unlock, err := a.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer unlock()

	for _, c := range categories {
		decision, err := a.Check(ctx, userID, c, itemDelta)
		if err != nil {
			return nil, err
		}
		if !decision.Allow {
			return nil, &DeniedError{Decision: decision}
		}
	}

	if err := action(ctx); err != nil {
		return nil, err
	}

	deltas := make([]Delta, 0, len(categories))
	for _, c := range categories {
		deltas = append(deltas, Delta{Category: c, Items: itemDelta, Bytes: byteDelta})
	}
	return a.commitLocked(ctx, userID, false, deltas)
}
