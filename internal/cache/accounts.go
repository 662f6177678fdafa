package cache

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

const accountIndexKey = "accounts"

func accountEmailKey(email string) string {
	return fmt.Sprintf("account:email:%s", email)
}

func accountIDKey(id string) string {
	return fmt.Sprintf("account:id:%s", id)
}

// CreateAccount stores the account only if the email is not taken
func (c *Cache) CreateAccount(ctx context.Context, account *models.Account) error {
	data, err := jsonBytes(account.ToStored())
	if err != nil {
		return err
	}

	created, err := c.client.SetNX(ctx, accountEmailKey(account.Email), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	if !created {
		return models.ErrAlreadyExists
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, accountIDKey(account.ID), account.Email, 0)
	pipe.SAdd(ctx, accountIndexKey, account.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index account: %w", err)
	}
	return nil
}

// GetAccountByEmail loads an account by normalized email
func (c *Cache) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	data, err := c.getBytes(ctx, accountEmailKey(email))
	if err != nil {
		return nil, err
	}
	account, err := models.AccountFromStored(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return account, nil
}

// GetAccountByID loads an account by user id
func (c *Cache) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	email, err := c.getBytes(ctx, accountIDKey(id))
	if err != nil {
		return nil, err
	}
	return c.GetAccountByEmail(ctx, string(email))
}

// UpdateTier overwrites the tier of an existing account
func (c *Cache) UpdateTier(ctx context.Context, id string, tier models.Tier) error {
	account, err := c.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}
	account.Tier = tier
	return c.setJSON(ctx, accountEmailKey(account.Email), account.ToStored())
}

// ListAccountIDs returns every registered user id
func (c *Cache) ListAccountIDs(ctx context.Context) ([]string, error) {
	ids, err := c.client.SMembers(ctx, accountIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return ids, nil
}
