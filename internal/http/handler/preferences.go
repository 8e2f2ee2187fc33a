package handler

import (
	"log/slog"
	"net/http"

	"github.com/conduithq/conduit/internal/http/middleware"
	"github.com/conduithq/conduit/internal/service"
	"github.com/gin-gonic/gin"
)

type PreferenceHandler struct {
	preferences service.PreferenceService
}

func NewPreferenceHandler(preferences service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences}
}

func (h *PreferenceHandler) Get(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	pref, err := h.preferences.Get(c.Request.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to load preference", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preference"})
		return
	}
	c.JSON(http.StatusOK, pref)
}

type updatePreferenceRequest struct {
	HealthAlertsEnabled bool    `json:"health_alerts_enabled"`
	AlertEmail          *string `json:"alert_email"`
}

func (h *PreferenceHandler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req updatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pref, err := h.preferences.Update(c.Request.Context(), user.ID, req.HealthAlertsEnabled, req.AlertEmail)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to save preference", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save preference"})
		return
	}
	c.JSON(http.StatusOK, pref)
}
