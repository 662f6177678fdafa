package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

func usageKey(userID string) string {
	return fmt.Sprintf("usage:%s", userID)
}

func jsonBytes(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return data, nil
}

// GetUsage loads a usage tracker, or models.ErrNotFound
func (c *Cache) GetUsage(ctx context.Context, userID string) (*models.UsageTracker, error) {
	data, err := c.getBytes(ctx, usageKey(userID))
	if err != nil {
		return nil, err
	}

	var tracker models.UsageTracker
	if err := json.Unmarshal(data, &tracker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage: %w", err)
	}
	tracker.Normalize()
	return &tracker, nil
}

// SaveUsage persists a usage tracker
func (c *Cache) SaveUsage(ctx context.Context, tracker *models.UsageTracker) error {
	if err := c.setJSON(ctx, usageKey(tracker.UserID), tracker); err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}
	return nil
}
