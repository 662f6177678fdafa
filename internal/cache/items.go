package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

func itemsKey(userID string) string {
	return fmt.Sprintf("items:%s", userID)
}

// CreateItem stores saved-item metadata
func (c *Cache) CreateItem(ctx context.Context, item *models.SavedItem) error {
	meta := *item
	meta.Content = ""
	data, err := jsonBytes(meta)
	if err != nil {
		return err
	}
	if err := c.client.HSet(ctx, itemsKey(item.UserID), item.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetItem loads one saved item, or models.ErrNotFound
func (c *Cache) GetItem(ctx context.Context, userID, itemID string) (*models.SavedItem, error) {
	data, err := c.client.HGet(ctx, itemsKey(userID), itemID).Bytes()
	if err != nil {
		if isNil(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	var item models.SavedItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return &item, nil
}

// DeleteItem removes one saved item, or returns models.ErrNotFound
func (c *Cache) DeleteItem(ctx context.Context, userID, itemID string) error {
	n, err := c.client.HDel(ctx, itemsKey(userID), itemID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListItems returns a user's items, newest first. An empty category lists all.
func (c *Cache) ListItems(ctx context.Context, userID string, category models.Category) ([]*models.SavedItem, error) {
	raw, err := c.client.HGetAll(ctx, itemsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items := make([]*models.SavedItem, 0, len(raw))
	for id, data := range raw {
		var item models.SavedItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item %s: %w", id, err)
		}
		if category != "" && item.Category != category {
			continue
		}
		items = append(items, &item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}
