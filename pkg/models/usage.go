package models

import (
	"errors"
	"time"
)

// ErrNegativeUsage is returned when a delta would drive a counter below zero
var ErrNegativeUsage = errors.New("usage counter would become negative")

// UsageTracker holds a user's persisted consumption per category
type UsageTracker struct {
	UserID    string             `json:"user_id" db:"user_id"`
	Tier      Tier               `json:"tier" db:"tier"`
	Items     map[Category]int64 `json:"items" db:"items"`
	Bytes     map[Category]int64 `json:"bytes" db:"bytes"`
	UpdatedAt time.Time          `json:"updated_at" db:"updated_at"`
}

// NewUsageTracker returns a tracker with every category at zero
func NewUsageTracker(userID string, tier Tier) *UsageTracker {
	t := &UsageTracker{
		UserID: userID,
		Tier:   tier,
		Items:  make(map[Category]int64, len(allCategories)),
		Bytes:  make(map[Category]int64, len(allCategories)),
	}
	for _, c := range allCategories {
		t.Items[c] = 0
		t.Bytes[c] = 0
	}
	return t
}

// Normalize fills in categories missing from a decoded tracker
func (t *UsageTracker) Normalize() {
	if t.Items == nil {
		t.Items = make(map[Category]int64, len(allCategories))
	}
	if t.Bytes == nil {
		t.Bytes = make(map[Category]int64, len(allCategories))
	}
	for _, c := range allCategories {
		if _, ok := t.Items[c]; !ok {
			t.Items[c] = 0
		}
		if _, ok := t.Bytes[c]; !ok {
			t.Bytes[c] = 0
		}
	}
}

// Apply adds the deltas to a category. The tracker is unchanged on error.
func (t *UsageTracker) Apply(c Category, itemDelta, byteDelta int64) error {
	items := t.Items[c] + itemDelta
	bytes := t.Bytes[c] + byteDelta
	if items < 0 || bytes < 0 {
		return ErrNegativeUsage
	}
	t.Items[c] = items
	t.Bytes[c] = bytes
	return nil
}

// Clone returns a deep copy
func (t *UsageTracker) Clone() *UsageTracker {
	c := *t
	c.Items = make(map[Category]int64, len(t.Items))
	c.Bytes = make(map[Category]int64, len(t.Bytes))
	for k, v := range t.Items {
		c.Items[k] = v
	}
	for k, v := range t.Bytes {
		c.Bytes[k] = v
	}
	return &c
}
