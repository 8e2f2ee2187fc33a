package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/conduithq/conduit/internal/http/middleware"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/service"
	"github.com/conduithq/conduit/internal/store"
	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	jobs service.JobService
}

func NewJobHandler(jobs service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	limit := int32(50)
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 32); err == nil {
			limit = int32(parsed)
		}
	}

	jobs, err := h.jobs.ListForUser(c.Request.Context(), user.ID, limit)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *JobHandler) Events(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	events, err := h.jobs.Events(c.Request.Context(), user.ID, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		slog.ErrorContext(c.Request.Context(), "failed to list job events", "error", err, "job_id", jobID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list job events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type ingestJobRequest struct {
	Op  string            `json:"op" binding:"required"`
	Job model.PipelineJob `json:"job" binding:"required"`
}

// IngestJob accepts execution updates pushed by the executor functions.
func (h *JobHandler) IngestJob(c *gin.Context) {
	var req ingestJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	op := realtime.Op(req.Op)
	if op != realtime.OpInsert && op != realtime.OpUpdate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "op must be insert or update"})
		return
	}

	if err := h.jobs.IngestJob(c.Request.Context(), &req.Job, op); err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to ingest job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest job"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": req.Job.ID})
}

func (h *JobHandler) IngestEvent(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	var event model.PipelineEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	event.JobID = jobID

	if err := h.jobs.IngestEvent(c.Request.Context(), &event); err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to ingest job event", "error", err, "job_id", jobID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest job event"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": event.ID})
}
