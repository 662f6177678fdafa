package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		status = "failed"
	}
	metrics.RecordDatabaseOperation(operation, status, time.Since(start).Seconds())
}

// Accounts

// CreateAccount inserts an account, returning models.ErrAlreadyExists when
// the email is taken
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	start := time.Now()
	query := `
		INSERT INTO accounts (id, email, password_hash, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Tier,
		account.CreatedAt, account.UpdatedAt,
	)
	observe("create_account", start, err)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAlreadyExists
	}

	return nil
}

const accountColumns = `id, email, password_hash, tier, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Tier, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// GetAccountByEmail retrieves an account by normalized email
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	start := time.Now()
	account, err := scanAccount(r.db.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	observe("get_account", start, err)
	return account, err
}

// GetAccountByID retrieves an account by user id
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	start := time.Now()
	account, err := scanAccount(r.db.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	observe("get_account", start, err)
	return account, err
}

// UpdateTier changes the tier of an existing account
func (r *Repository) UpdateTier(ctx context.Context, id string, tier models.Tier) error {
	start := time.Now()
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET tier = $2, updated_at = NOW() WHERE id = $1`, id, tier)
	observe("update_tier", start, err)
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListAccountIDs returns every registered user id
func (r *Repository) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan accounts: %w", err)
	}
	return ids, nil
}

// Usage

// GetUsage retrieves a user's usage tracker
func (r *Repository) GetUsage(ctx context.Context, userID string) (*models.UsageTracker, error) {
	start := time.Now()
	var t models.UsageTracker

	query := `
		SELECT user_id, tier, items, bytes, updated_at
		FROM usage_trackers
		WHERE user_id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&t.UserID, &t.Tier, &t.Items, &t.Bytes, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = models.ErrNotFound
	}
	observe("get_usage", start, err)
	if errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	t.Normalize()
	return &t, nil
}

// SaveUsage upserts a user's usage tracker
func (r *Repository) SaveUsage(ctx context.Context, tracker *models.UsageTracker) error {
	start := time.Now()
	query := `
		INSERT INTO usage_trackers (user_id, tier, items, bytes, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier, items = EXCLUDED.items, bytes = EXCLUDED.bytes, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool.Exec(ctx, query,
		tracker.UserID, tracker.Tier, tracker.Items, tracker.Bytes, tracker.UpdatedAt,
	)
	observe("save_usage", start, err)
	if err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}

	return nil
}

// Saved items

// CreateItem stores saved-item metadata
func (r *Repository) CreateItem(ctx context.Context, item *models.SavedItem) error {
	start := time.Now()
	query := `
		INSERT INTO saved_items (id, user_id, category, utility_id, title, content_type, object_key, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		item.ID, item.UserID, item.Category, item.UtilityID, item.Title,
		item.ContentType, item.ObjectKey, item.Size, item.CreatedAt,
	)
	observe("create_item", start, err)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

const itemColumns = `id, user_id, category, utility_id, title, content_type, object_key, size, created_at`

func scanItem(row pgx.Row) (*models.SavedItem, error) {
	var item models.SavedItem
	err := row.Scan(
		&item.ID, &item.UserID, &item.Category, &item.UtilityID, &item.Title,
		&item.ContentType, &item.ObjectKey, &item.Size, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItem retrieves one of a user's items
func (r *Repository) GetItem(ctx context.Context, userID, itemID string) (*models.SavedItem, error) {
	start := time.Now()
	item, err := scanItem(r.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM saved_items WHERE user_id = $1 AND id = $2`, userID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		err = models.ErrNotFound
	}
	observe("get_item", start, err)
	if errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// DeleteItem removes one of a user's items
func (r *Repository) DeleteItem(ctx context.Context, userID, itemID string) error {
	start := time.Now()
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM saved_items WHERE user_id = $1 AND id = $2`, userID, itemID)
	observe("delete_item", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListItems returns a user's items, newest first. An empty category lists all.
func (r *Repository) ListItems(ctx context.Context, userID string, category models.Category) ([]*models.SavedItem, error) {
	start := time.Now()
	query := `
		SELECT ` + itemColumns + `
		FROM saved_items
		WHERE user_id = $1 AND ($2 = '' OR category = $2)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, string(category))
	if err != nil {
		observe("list_items", start, err)
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*models.SavedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	err = rows.Err()
	observe("list_items", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	return items, nil
}

// Usage events

// RecordUsageEvent appends an event to the ledger. Redelivered events are
// ignored.
func (r *Repository) RecordUsageEvent(ctx context.Context, event *models.UsageEvent) error {
	start := time.Now()
	query := `
		INSERT INTO usage_events (id, user_id, tier, category, item_delta, byte_delta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query,
		event.ID, event.UserID, event.Tier, event.Category,
		event.ItemDelta, event.ByteDelta, event.OccurredAt,
	)
	observe("record_usage_event", start, err)
	if err != nil {
		return fmt.Errorf("failed to record usage event: %w", err)
	}

	return nil
}

// ListUsageEvents returns a user's most recent usage events
func (r *Repository) ListUsageEvents(ctx context.Context, userID string, limit int) ([]*models.UsageEvent, error) {
	query := `
		SELECT id, user_id, tier, category, item_delta, byte_delta, occurred_at
		FROM usage_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}
	defer rows.Close()

	var events []*models.UsageEvent
	for rows.Next() {
		var e models.UsageEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Tier, &e.Category, &e.ItemDelta, &e.ByteDelta, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}
