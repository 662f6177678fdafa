// Package app wires the shared services used by the API, the worker and promptctl.
package app

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/allowlist"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/cache"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/config"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/credential"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/database"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/entitlement"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/library"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/queue"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/quota"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/storage"
)

// Backend is everything a persistence driver has to provide
type Backend interface {
	credential.Repository
	quota.UsageRepository
	library.ItemRepository
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// HealthCheck probes one dependency
type HealthCheck = metrics.HealthCheck

// Services holds the connected dependencies and the domain services built on them
type Services struct {
	Cache       *cache.Cache
	DB          *database.DB
	Repository  *database.Repository
	Store       Backend
	Queue       *queue.Queue
	Storage     *storage.Storage
	Table       *entitlement.Table
	AllowList   *allowlist.List
	Credentials *credential.Service
	Accountant  *quota.Accountant
	Library     *library.Service
	Health      []HealthCheck

	closers []func()
}

// Open connects every backend named by cfg and builds the services. The
// returned Services must be closed even when a later step fails.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Services, error) {
	s := &Services{}

	if cfg.Persistence.Driver == "redis" || cfg.Quota.Locker == "redis" {
		c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return s, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.Cache = c
		s.closers = append(s.closers, func() { c.Close() })
		s.Health = append(s.Health, HealthCheck{Name: "redis", Check: c.Health})
	}

	switch cfg.Persistence.Driver {
	case "postgres":
		db, err := database.New(cfg.Database)
		if err != nil {
			return s, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.DB = db
		s.closers = append(s.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return s, fmt.Errorf("failed to migrate database: %w", err)
		}
		s.Repository = database.NewRepository(db)
		s.Store = s.Repository
		s.Health = append(s.Health, HealthCheck{Name: "database", Check: db.Health})
	default:
		s.Store = s.Cache
	}

	var locker quota.Locker = quota.NewLocalLocker()
	if cfg.Quota.Locker == "redis" {
		locker = cache.NewLocker(s.Cache, cfg.Redis.LockTTL)
	}

	var publisher quota.Publisher = quota.NopPublisher{}
	if cfg.Queue.Enabled {
		q, err := queue.New(cfg.Queue, logger)
		if err != nil {
			return s, fmt.Errorf("failed to connect to queue: %w", err)
		}
		s.Queue = q
		s.closers = append(s.closers, func() { q.Close() })
		publisher = q
	}

	table, err := entitlement.LoadOrDefault(cfg.Entitlements.File)
	if err != nil {
		return s, fmt.Errorf("failed to load entitlement table: %w", err)
	}
	s.Table = table

	list, err := allowlist.Load(cfg.AllowList.File, logger)
	if err != nil {
		return s, fmt.Errorf("failed to load allow-list: %w", err)
	}
	s.AllowList = list

	s.Credentials = credential.NewService(s.Store, list, logger, credential.Options{
		MinPasswordLen: cfg.Auth.MinPasswordLen,
	})

	s.Accountant = quota.NewAccountant(s.Store, s.Credentials, table, locker, publisher, logger, quota.Options{
		RetryAttempts: cfg.Persistence.RetryAttempts,
		RetryDelay:    cfg.Persistence.RetryDelay,
	})

	stor, err := storage.New(cfg.Storage)
	if err != nil {
		return s, fmt.Errorf("failed to initialize storage: %w", err)
	}
	s.Storage = stor
	s.Health = append(s.Health, HealthCheck{Name: "storage", Check: stor.Health})

	s.Library = library.NewService(s.Store, stor, s.Accountant, logger)

	return s, nil
}

// Close releases connections in reverse order of opening
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
