package handler

import (
	"log/slog"
	"net/http"

	"github.com/conduithq/conduit/internal/http/middleware"
	"github.com/conduithq/conduit/internal/service"
	"github.com/conduithq/conduit/internal/store"
	"github.com/gin-gonic/gin"
)

type ConnectorHandler struct {
	connectors  store.ConnectorStore
	connections service.ConnectionService
}

func NewConnectorHandler(connectors store.ConnectorStore, connections service.ConnectionService) *ConnectorHandler {
	return &ConnectorHandler{connectors: connectors, connections: connections}
}

func (h *ConnectorHandler) List(c *gin.Context) {
	connectors, err := h.connectors.List(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list connectors", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list connectors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connectors": connectors})
}

// GetBySlug joins the connector with the caller's connection. An
// unknown slug is a 404, not a server error.
func (h *ConnectorHandler) GetBySlug(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	detail, err := h.connections.GetBySlug(c.Request.Context(), user.ID, c.Param("slug"))
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to load connector", "error", err, "slug", c.Param("slug"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load connector"})
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connector not found"})
		return
	}

	c.JSON(http.StatusOK, detail)
}
