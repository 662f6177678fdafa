package main

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/credential"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/library"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/middleware"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/prompts"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/quota"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *models.Account `json:"account"`
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	for _, h := range api.health {
		if err := h.check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"component": h.name,
				"error":     err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (api *API) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := api.creds.Register(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, credential.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
		return
	case errors.Is(err, credential.ErrInvalidEmail), errors.Is(err, credential.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		api.logger.ErrorWithErr("registration failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		return
	}

	api.respondWithToken(c, http.StatusCreated, account)
}

func (api *API) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := api.creds.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, credential.ErrNotAuthenticated) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": credential.ErrNotAuthenticated.Error()})
		return
	}
	if err != nil {
		api.logger.ErrorWithErr("login failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	api.respondWithToken(c, http.StatusOK, account)
}

func (api *API) respondWithToken(c *gin.Context, status int, account *models.Account) {
	token, expires, err := api.tokens.GenerateToken(account)
	if err != nil {
		api.logger.ErrorWithErr("failed to sign token", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(status, tokenResponse{Token: token, ExpiresAt: expires, Account: account})
}

func (api *API) getUsage(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	tracker, err := api.quota.Usage(c.Request.Context(), userID)
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"usage":  tracker,
		"limits": api.table.LimitsFor(tracker.Tier),
	})
}

type checkRequest struct {
	Category  models.Category `json:"category" binding:"required"`
	ItemDelta int64           `json:"item_delta"`
}

func (api *API) checkQuota(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := middleware.GetUserID(c)

	decision, err := api.quota.Check(c.Request.Context(), userID, req.Category, req.ItemDelta)
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

func (api *API) listUtilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"utilities": api.catalog.List()})
}

type generateRequest struct {
	UtilityID string `json:"utility_id" binding:"required"`
	Input     string `json:"input"`
	Image     string `json:"image"` // base64
	ImageMIME string `json:"image_mime"`
}

// generate runs a utility. Only a plan without access to the utility's
// category is refused; running out of save quota does not block generation.
func (api *API) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := middleware.GetUserID(c)

	if api.generator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Text generation is not configured"})
		return
	}

	utility, err := api.catalog.Get(req.UtilityID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var image []byte
	if req.Image != "" {
		image, err = base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image must be base64 encoded"})
			return
		}
	}

	prompt, err := api.catalog.Assemble(utility.ID, req.Input, image, req.ImageMIME)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision, err := api.quota.Check(c.Request.Context(), userID, utility.Category, 1)
	if err != nil {
		api.respondError(c, err)
		return
	}
	if decision.Code == models.DecisionAccessDenied {
		c.JSON(http.StatusForbidden, decision)
		return
	}

	text, err := api.generator.Generate(c.Request.Context(), prompt)
	if err != nil {
		api.logger.WithUserID(userID).ErrorWithErr("generation failed", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"utility_id": utility.ID,
		"category":   utility.Category,
		"text":       text,
		"can_save":   decision.Allow,
		"decision":   decision,
	})
}

type saveRequest struct {
	Category    models.Category `json:"category" binding:"required"`
	UtilityID   string          `json:"utility_id"`
	Title       string          `json:"title"`
	Content     string          `json:"content" binding:"required"`
	ContentType string          `json:"content_type"`
}

func (api *API) saveItem(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := middleware.GetUserID(c)

	item, err := api.library.Save(c.Request.Context(), userID, library.SaveRequest{
		Category:    req.Category,
		UtilityID:   req.UtilityID,
		Title:       req.Title,
		Content:     req.Content,
		ContentType: req.ContentType,
	})
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (api *API) listItems(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	items, err := api.library.List(c.Request.Context(), userID, models.Category(c.Query("category")))
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (api *API) getItem(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	item, err := api.library.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (api *API) deleteItem(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	if err := api.library.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		api.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// respondError maps service errors to HTTP responses
func (api *API) respondError(c *gin.Context, err error) {
	var denied *quota.DeniedError
	switch {
	case errors.As(err, &denied):
		status := http.StatusTooManyRequests
		if denied.Decision.Code == models.DecisionAccessDenied {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{
			"error":    denied.Decision.Reason,
			"decision": denied.Decision,
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, models.ErrUnknownCategory),
		errors.Is(err, library.ErrNotFeatureCategory),
		errors.Is(err, library.ErrEmptyContent),
		errors.Is(err, prompts.ErrUnknownUtility):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		api.logger.ErrorWithErr("request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
