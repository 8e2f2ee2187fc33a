package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conduithq/conduit/common/id"
	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/store"
)

// JobPublisher publishes job and job-event changes to the realtime
// streams.
type JobPublisher interface {
	PublishJob(ctx context.Context, op realtime.Op, job *model.PipelineJob) error
	PublishJobEvent(ctx context.Context, event *model.PipelineEvent) error
}

// JobService ingests execution records pushed by the executor
// functions and republishes them on the realtime streams.
type JobService interface {
	IngestJob(ctx context.Context, job *model.PipelineJob, op realtime.Op) error
	IngestEvent(ctx context.Context, event *model.PipelineEvent) error
	ListForUser(ctx context.Context, userID int64, limit int32) ([]model.PipelineJob, error)
	Events(ctx context.Context, userID, jobID int64) ([]model.PipelineEvent, error)
}

type jobService struct {
	jobs        store.JobStore
	connections store.ConnectionStore
	publisher   JobPublisher
	logger      *slog.Logger
}

func NewJobService(jobs store.JobStore, connections store.ConnectionStore, publisher JobPublisher, log *slog.Logger) JobService {
	if log == nil {
		log = slog.Default()
	}
	return &jobService{jobs: jobs, connections: connections, publisher: publisher, logger: log}
}

func (s *jobService) IngestJob(ctx context.Context, job *model.PipelineJob, op realtime.Op) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(job.UserID),
		JobID:     logger.Ptr(job.ID),
		Component: "conduit.service.job",
	})

	if job.ID == 0 {
		job.ID = id.New()
	}
	if err := s.jobs.Upsert(ctx, job); err != nil {
		return fmt.Errorf("ingesting job: %w", err)
	}

	// A job running against a connection is the connection being used.
	if job.ConnectionID != 0 {
		if err := s.connections.TouchLastUsed(ctx, job.ConnectionID, time.Now()); err != nil {
			s.logger.WarnContext(ctx, "touching connection last-used failed", "error", err, "connection_id", job.ConnectionID)
		}
	}

	if err := s.publisher.PublishJob(ctx, op, job); err != nil {
		s.logger.ErrorContext(ctx, "publishing job change failed", "error", err)
	}
	return nil
}

func (s *jobService) IngestEvent(ctx context.Context, event *model.PipelineEvent) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:     logger.Ptr(event.JobID),
		Component: "conduit.service.job",
	})

	if event.ID == 0 {
		event.ID = id.New()
	}
	if err := s.jobs.AppendEvent(ctx, event); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Redelivery from the executor; the first copy already
			// reached the stream.
			s.logger.InfoContext(ctx, "dropping redelivered job event", "event_id", event.ID)
			return nil
		}
		return fmt.Errorf("ingesting job event: %w", err)
	}

	if err := s.publisher.PublishJobEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "publishing job event failed", "error", err)
	}
	return nil
}

func (s *jobService) ListForUser(ctx context.Context, userID int64, limit int32) ([]model.PipelineJob, error) {
	if limit <= 0 {
		limit = 50
	}
	jobs, err := s.jobs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

func (s *jobService) Events(ctx context.Context, userID, jobID int64) ([]model.PipelineEvent, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if job.UserID != userID {
		return nil, store.ErrNotFound
	}

	events, err := s.jobs.ListEvents(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing job events: %w", err)
	}
	return events, nil
}
