package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/conduithq/conduit/internal/http/middleware"
	"github.com/conduithq/conduit/internal/oauth"
	"github.com/conduithq/conduit/internal/service"
	"github.com/conduithq/conduit/internal/store"
	"github.com/gin-gonic/gin"
)

type ConnectionHandler struct {
	connections service.ConnectionService
	controller  *oauth.Controller
}

func NewConnectionHandler(connections service.ConnectionService, controller *oauth.Controller) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, controller: controller}
}

func (h *ConnectionHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	connections, err := h.connections.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list connections", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list connections"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": connections})
}

type connectRequest struct {
	Slug   string `json:"slug" binding:"required"`
	Secret string `json:"secret"`
}

// Connect links an api_key or no-auth connector. OAuth connectors must
// go through the authorization flow and are rejected here.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	connection, err := h.connections.Connect(c.Request.Context(), user.ID, req.Slug, req.Secret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownConnector):
			c.JSON(http.StatusNotFound, gin.H{"error": "connector not found"})
		case errors.Is(err, service.ErrOAuthRequired):
			c.JSON(http.StatusConflict, gin.H{"error": "connector requires authorization, use the oauth flow"})
		default:
			slog.ErrorContext(c.Request.Context(), "failed to connect", "error", err, "slug", req.Slug)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to connect"})
		}
		return
	}

	c.JSON(http.StatusCreated, connection)
}

func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	connectionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return
	}

	if err := h.connections.Disconnect(c.Request.Context(), user.ID, connectionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		slog.ErrorContext(c.Request.Context(), "failed to disconnect", "error", err, "connection_id", connectionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "disconnected"})
}

type refreshRequest struct {
	Force bool `json:"force"`
}

func (h *ConnectionHandler) Refresh(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	connectionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Status is left untouched on failure; the realtime stream carries
	// the new expiry when the refresh lands.
	if err := h.controller.Refresh(c.Request.Context(), user.ID, connectionID, req.Force); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		slog.ErrorContext(c.Request.Context(), "failed to refresh token", "error", err, "connection_id", connectionID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "refresh failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "refresh requested"})
}
