package main

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/entitlement"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/generator"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/library"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/middleware"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/prompts"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// Credentials registers and authenticates accounts
type Credentials interface {
	Register(ctx context.Context, email, password string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
}

// Quota reads usage and evaluates checks. Usage is committed only by the
// library's save and delete paths.
type Quota interface {
	Check(ctx context.Context, userID string, category models.Category, itemDelta int64) (*models.Decision, error)
	Usage(ctx context.Context, userID string) (*models.UsageTracker, error)
}

// Library manages saved items
type Library interface {
	Save(ctx context.Context, userID string, req library.SaveRequest) (*models.SavedItem, error)
	Get(ctx context.Context, userID, itemID string) (*models.SavedItem, error)
	List(ctx context.Context, userID string, category models.Category) ([]*models.SavedItem, error)
	Delete(ctx context.Context, userID, itemID string) error
}

type healthCheck struct {
	name  string
	check func(context.Context) error
}

// API holds the HTTP handlers' dependencies
type API struct {
	creds     Credentials
	quota     Quota
	table     *entitlement.Table
	library   Library
	catalog   *prompts.Catalog
	generator generator.Generator
	tokens    *middleware.TokenIssuer
	health    []healthCheck
	logger    *logging.Logger
}

func setupRouter(api *API, rl *middleware.RateLimiter, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(rl))
	{
		// Auth
		v1.POST("/auth/register", api.register)
		v1.POST("/auth/login", api.login)
	}

	authed := router.Group("/api/v1")
	authed.Use(middleware.JWTAuth(api.tokens), middleware.RateLimit(rl))
	{
		// Quota
		authed.GET("/usage", api.getUsage)
		authed.POST("/quota/check", api.checkQuota)

		// Generation
		authed.GET("/utilities", api.listUtilities)
		authed.POST("/generate", api.generate)

		// Saved items
		authed.POST("/items", api.saveItem)
		authed.GET("/items", api.listItems)
		authed.GET("/items/:id", api.getItem)
		authed.DELETE("/items/:id", api.deleteItem)
	}

	return router
}
