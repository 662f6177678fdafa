// Package credential registers and authenticates accounts.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/tracing"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

var (
	// ErrAlreadyExists is returned when registering an email that is taken
	ErrAlreadyExists = models.ErrAlreadyExists
	// ErrNotAuthenticated covers both unknown emails and wrong passwords
	ErrNotAuthenticated = errors.New("invalid email or password")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrWeakPassword     = errors.New("password is too short")
)

// DefaultMinPasswordLen applies when Options.MinPasswordLen is zero
const DefaultMinPasswordLen = 8

// Repository persists accounts
type Repository interface {
	// CreateAccount stores the account only if its email is absent,
	// returning models.ErrAlreadyExists otherwise.
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	UpdateTier(ctx context.Context, id string, tier models.Tier) error
}

// TierSource resolves the plan granted to an email at registration
type TierSource interface {
	TierFor(email string) models.Tier
}

// Options tunes the service
type Options struct {
	MinPasswordLen int
	BcryptCost     int
}

// Service implements the credential store
type Service struct {
	repo      Repository
	allowList TierSource
	logger    *logging.Logger
	minLen    int
	cost      int
	dummy     []byte
	now       func() time.Time
}

// NewService creates a credential service
func NewService(repo Repository, allowList TierSource, logger *logging.Logger, opts Options) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.MinPasswordLen == 0 {
		opts.MinPasswordLen = DefaultMinPasswordLen
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("promptdesk-unknown-account"), opts.BcryptCost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt: %v", err))
	}
	return &Service{
		dummy:     dummy,
		repo:      repo,
		allowList: allowList,
		logger:    logger.WithComponent("credential"),
		minLen:    opts.MinPasswordLen,
		cost:      opts.BcryptCost,
		now:       time.Now,
	}
}

// Register creates an account with its tier taken from the allow-list
func (s *Service) Register(ctx context.Context, email, password string) (*models.Account, error) {
	span, ctx := tracing.StartSpan(ctx, "credential.register")
	defer tracing.FinishSpan(span)

	email = models.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || email == "" || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(password) < s.minLen {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tier := models.LowestTier
	if s.allowList != nil {
		tier = s.allowList.TierFor(email)
	}

	now := s.now().UTC()
	account := &models.Account{
		ID:           models.UserIDForEmail(email),
		Email:        email,
		PasswordHash: string(hash),
		Tier:         tier,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		tracing.LogError(span, err)
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.WithUserID(account.ID).Infof("registered account on %s", tier)
	return account, nil
}

// Authenticate returns the account when the password matches
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := s.repo.GetAccountByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		// Burn comparable time so unknown emails are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, ErrNotAuthenticated
	}
	return account, nil
}

// ResolveTier returns the current tier of a user. Unknown tiers stored by an
// older table degrade to the lowest tier.
func (s *Service) ResolveTier(ctx context.Context, userID string) (models.Tier, error) {
	account, err := s.repo.GetAccountByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve tier: %w", err)
	}
	if !account.Tier.Valid() {
		s.logger.WithUserID(userID).Warnf("stored tier %q is unknown, using %s", account.Tier, models.LowestTier)
		return models.LowestTier, nil
	}
	return account.Tier, nil
}

// SyncTier re-applies the allow-list to an existing account. This is the only
// path that changes a tier after registration.
func (s *Service) SyncTier(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.repo.GetAccountByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	tier := models.LowestTier
	if s.allowList != nil {
		tier = s.allowList.TierFor(account.Email)
	}
	if tier == account.Tier {
		return account, nil
	}

	if err := s.repo.UpdateTier(ctx, account.ID, tier); err != nil {
		return nil, fmt.Errorf("failed to update tier: %w", err)
	}
	s.logger.WithUserID(account.ID).Infof("tier changed from %s to %s", account.Tier, tier)
	account.Tier = tier
	return account, nil
}
