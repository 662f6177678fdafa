package models

import "time"

// UsageEvent records a committed change to a user's counters
type UsageEvent struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Tier       Tier      `json:"tier" db:"tier"`
	Category   Category  `json:"category" db:"category"`
	ItemDelta  int64     `json:"item_delta" db:"item_delta"`
	ByteDelta  int64     `json:"byte_delta" db:"byte_delta"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}
