package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Hub serves the SSE stream backed by the cache. Each client first
// receives a full user-scoped snapshot, then every applied change that
// user may see.
type Hub struct {
	cache  *Cache
	logger *slog.Logger
}

const heartbeatInterval = 25 * time.Second

func NewHub(cache *Cache, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{cache: cache, logger: logger}
}

func (h *Hub) Serve(c *gin.Context, userID int64) {
	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", h.cache.ViewFor(userID)); err != nil {
		return
	}
	flusher.Flush()

	changes, unsubscribe := h.cache.Subscribe()
	defer unsubscribe()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case change, open := <-changes:
			if !open {
				return
			}
			if !h.visible(change, userID) {
				continue
			}
			if err := writeEvent(w, "change", change); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// visible reports whether a change belongs to the client's user.
// Job events carry no user id; ownership comes from the jobs cache.
func (h *Hub) visible(change Change, userID int64) bool {
	switch change.Stream {
	case StreamConnections, StreamJobs:
		return change.UserID == userID
	case StreamJobEvents:
		return change.Event != nil && h.cache.OwnsJob(userID, change.Event.JobID)
	}
	return false
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("writing %s event: %w", event, err)
	}
	return nil
}
