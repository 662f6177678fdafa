// Package library stores generated outputs users choose to keep, charging
// each save against the user's quota.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/quota"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/storage"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/tracing"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

var (
	// ErrNotFeatureCategory is returned when saving directly into the universal category
	ErrNotFeatureCategory = errors.New("items can only be saved to a feature category")
	// ErrEmptyContent is returned for saves with no body
	ErrEmptyContent = errors.New("item content is empty")
)

// ItemRepository persists item metadata
type ItemRepository interface {
	CreateItem(ctx context.Context, item *models.SavedItem) error
	GetItem(ctx context.Context, userID, itemID string) (*models.SavedItem, error)
	DeleteItem(ctx context.Context, userID, itemID string) error
	ListItems(ctx context.Context, userID string, category models.Category) ([]*models.SavedItem, error)
}

// BlobStore persists item bodies
type BlobStore interface {
	PutItem(ctx context.Context, key string, content []byte, contentType string) error
	GetItem(ctx context.Context, key string) ([]byte, error)
	DeleteItem(ctx context.Context, key string) error
}

// SaveRequest describes an item to keep
type SaveRequest struct {
	Category    models.Category
	UtilityID   string
	Title       string
	Content     string
	ContentType string
}

// Service manages saved items
type Service struct {
	items      ItemRepository
	blobs      BlobStore
	accountant *quota.Accountant
	logger     *logging.Logger
	now        func() time.Time
}

// NewService creates a library service
func NewService(items ItemRepository, blobs BlobStore, accountant *quota.Accountant, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		items:      items,
		blobs:      blobs,
		accountant: accountant,
		logger:     logger.WithComponent("library"),
		now:        time.Now,
	}
}

// Save stores an item if the user's quota admits it. A denial is returned as
// *quota.DeniedError.
func (s *Service) Save(ctx context.Context, userID string, req SaveRequest) (*models.SavedItem, error) {
	span, ctx := tracing.StartSpan(ctx, "library.save")
	defer tracing.FinishSpan(span)

	category, err := models.ParseCategory(string(req.Category))
	if err != nil {
		return nil, err
	}
	if !category.IsFeature() {
		return nil, ErrNotFeatureCategory
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}
	if req.ContentType == "" {
		req.ContentType = "text/plain"
	}

	id := uuid.NewString()
	item := &models.SavedItem{
		ID:          id,
		UserID:      userID,
		Category:    category,
		UtilityID:   req.UtilityID,
		Title:       req.Title,
		Content:     req.Content,
		ContentType: req.ContentType,
		ObjectKey:   storage.ObjectKey(userID, category, id, req.ContentType),
		Size:        models.ItemSize(len(req.Content)),
		CreatedAt:   s.now().UTC(),
	}

	_, err = s.accountant.Admit(ctx, userID, category, 1, item.Size, func(ctx context.Context) error {
		return s.store(ctx, item)
	})
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}

	metrics.RecordItemSaved(string(category), item.Size)
	s.logger.WithUserID(userID).WithField("item_id", id).Infof("saved %s item (%d bytes)", category, item.Size)
	return item, nil
}

func (s *Service) store(ctx context.Context, item *models.SavedItem) error {
	if err := s.blobs.PutItem(ctx, item.ObjectKey, []byte(item.Content), item.ContentType); err != nil {
		return fmt.Errorf("failed to store item body: %w", err)
	}

	if err := s.items.CreateItem(ctx, item); err != nil {
		if derr := s.blobs.DeleteItem(context.WithoutCancel(ctx), item.ObjectKey); derr != nil {
			s.logger.WithField("object_key", item.ObjectKey).ErrorWithErr("failed to remove orphaned item body", derr)
		}
		return fmt.Errorf("failed to store item metadata: %w", err)
	}
	return nil
}

// Get returns an item with its body
func (s *Service) Get(ctx context.Context, userID, itemID string) (*models.SavedItem, error) {
	item, err := s.items.GetItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	content, err := s.blobs.GetItem(ctx, item.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load item body: %w", err)
	}
	item.Content = string(content)
	return item, nil
}

// List returns a user's items, newest first. An empty category lists all.
func (s *Service) List(ctx context.Context, userID string, category models.Category) ([]*models.SavedItem, error) {
	if category != "" {
		if _, err := models.ParseCategory(string(category)); err != nil {
			return nil, err
		}
	}
	return s.items.ListItems(ctx, userID, category)
}

// Delete removes an item and gives its usage back to both categories
func (s *Service) Delete(ctx context.Context, userID, itemID string) error {
	span, ctx := tracing.StartSpan(ctx, "library.delete")
	defer tracing.FinishSpan(span)

	item, err := s.items.GetItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if err := s.items.DeleteItem(ctx, userID, itemID); err != nil {
		return err
	}
	if err := s.blobs.DeleteItem(ctx, item.ObjectKey); err != nil {
		s.logger.WithField("object_key", item.ObjectKey).ErrorWithErr("failed to delete item body", err)
	}

	_, err = s.accountant.Release(ctx, userID,
		quota.Delta{Category: item.Category, Items: -1, Bytes: -item.Size},
		quota.Delta{Category: models.CategoryHistory, Items: -1, Bytes: -item.Size},
	)
	if err != nil {
		tracing.LogError(span, err)
		return fmt.Errorf("item deleted but usage not released: %w", err)
	}
	return nil
}

// Reconcile recomputes a user's counters from their saved items and returns
// the repaired tracker. The recount and the write share the user's lock.
func (s *Service) Reconcile(ctx context.Context, userID string) (*models.UsageTracker, error) {
	var listed int
	tracker, changed, err := s.accountant.Reconcile(ctx, userID, func(ctx context.Context) (map[models.Category]int64, map[models.Category]int64, error) {
		items, err := s.items.ListItems(ctx, userID, "")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list items: %w", err)
		}
		listed = len(items)

		counts := make(map[models.Category]int64)
		sizes := make(map[models.Category]int64)
		for _, item := range items {
			counts[item.Category]++
			sizes[item.Category] += item.Size
			counts[models.CategoryHistory]++
			sizes[models.CategoryHistory] += item.Size
		}
		return counts, sizes, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.WithUserID(userID).Warnf("usage counters drifted, repaired from %d saved items", listed)
	}
	return tracker, nil
}
