package handler

import (
	"net/http"

	"github.com/conduithq/conduit/internal/http/middleware"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/gin-gonic/gin"
)

type EventStreamHandler struct {
	hub *realtime.Hub
}

func NewEventStreamHandler(hub *realtime.Hub) *EventStreamHandler {
	return &EventStreamHandler{hub: hub}
}

// Stream attaches the client to the SSE feed. The hub sends the
// user-scoped snapshot first, then forwards live changes until the
// client goes away.
func (h *EventStreamHandler) Stream(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	h.hub.Serve(c, user.ID)
}
