package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/model"
	"github.com/jackc/pgx/v5"
)

type jobStore struct {
	db *db.DB
}

func newJobStore(database *db.DB) *jobStore {
	return &jobStore{db: database}
}

func (s *jobStore) GetByID(ctx context.Context, id int64) (*model.PipelineJob, error) {
	var j model.PipelineJob
	err := s.db.Pool().QueryRow(ctx, `
		SELECT id, user_id, connection_id, tool, status, error, started_at, finished_at, created_at, updated_at
		FROM pipeline_jobs WHERE id = $1`, id,
	).Scan(
		&j.ID, &j.UserID, &j.ConnectionID, &j.Tool, &j.Status, &j.Error,
		&j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

// Upsert handles out-of-order ingest from the executor: a status update
// may arrive before the insert that created the job.
func (s *jobStore) Upsert(ctx context.Context, j *model.PipelineJob) error {
	row := s.db.Pool().QueryRow(ctx, `
		INSERT INTO pipeline_jobs (id, user_id, connection_id, tool, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			started_at = COALESCE(EXCLUDED.started_at, pipeline_jobs.started_at),
			finished_at = COALESCE(EXCLUDED.finished_at, pipeline_jobs.finished_at),
			updated_at = now()
		RETURNING created_at, updated_at`,
		j.ID, j.UserID, j.ConnectionID, j.Tool, j.Status, j.Error, j.StartedAt, j.FinishedAt,
	)
	if err := row.Scan(&j.CreatedAt, &j.UpdatedAt); err != nil {
		return fmt.Errorf("upserting job %d: %w", j.ID, err)
	}
	return nil
}

func (s *jobStore) ListByUser(ctx context.Context, userID int64, limit int32) ([]model.PipelineJob, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, user_id, connection_id, tool, status, error, started_at, finished_at, created_at, updated_at
		FROM pipeline_jobs WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.PipelineJob
	for rows.Next() {
		var j model.PipelineJob
		if err := rows.Scan(
			&j.ID, &j.UserID, &j.ConnectionID, &j.Tool, &j.Status, &j.Error,
			&j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListRecent returns the newest jobs across all users, for cache
// snapshot loads.
func (s *jobStore) ListRecent(ctx context.Context, limit int32) ([]model.PipelineJob, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, user_id, connection_id, tool, status, error, started_at, finished_at, created_at, updated_at
		FROM pipeline_jobs
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.PipelineJob
	for rows.Next() {
		var j model.PipelineJob
		if err := rows.Scan(
			&j.ID, &j.UserID, &j.ConnectionID, &j.Tool, &j.Status, &j.Error,
			&j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// AppendEvent inserts one event. A redelivered id yields ErrDuplicate
// so the caller can drop it without treating it as a failure.
func (s *jobStore) AppendEvent(ctx context.Context, e *model.PipelineEvent) error {
	err := s.db.Pool().QueryRow(ctx, `
		INSERT INTO pipeline_events (id, job_id, sequence, level, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at`,
		e.ID, e.JobID, e.Sequence, e.Level, e.Message,
	).Scan(&e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// DO NOTHING produced no row: the id was already ingested.
		return ErrDuplicate
	}
	return err
}

func (s *jobStore) ListEvents(ctx context.Context, jobID int64) ([]model.PipelineEvent, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, job_id, sequence, level, message, created_at
		FROM pipeline_events WHERE job_id = $1
		ORDER BY sequence`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.PipelineEvent
	for rows.Next() {
		var e model.PipelineEvent
		if err := rows.Scan(&e.ID, &e.JobID, &e.Sequence, &e.Level, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListRecentEvents returns events for the newest jobs, oldest first so
// a cache load preserves append order.
func (s *jobStore) ListRecentEvents(ctx context.Context, limit int32) ([]model.PipelineEvent, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, job_id, sequence, level, message, created_at FROM (
			SELECT id, job_id, sequence, level, message, created_at
			FROM pipeline_events ORDER BY created_at DESC LIMIT $1
		) recent ORDER BY job_id, sequence`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.PipelineEvent
	for rows.Next() {
		var e model.PipelineEvent
		if err := rows.Scan(&e.ID, &e.JobID, &e.Sequence, &e.Level, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
