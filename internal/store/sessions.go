package store

import (
	"context"
	"errors"

	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/model"
	"github.com/jackc/pgx/v5"
)

type sessionStore struct {
	db *db.DB
}

func newSessionStore(database *db.DB) *sessionStore {
	return &sessionStore{db: database}
}

func (s *sessionStore) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	return s.get(ctx, `SELECT id, user_id, workos_session_id, expires_at, created_at FROM sessions WHERE id = $1`, id)
}

func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	return s.get(ctx, `SELECT id, user_id, workos_session_id, expires_at, created_at FROM sessions WHERE id = $1 AND expires_at > now()`, id)
}

func (s *sessionStore) get(ctx context.Context, query string, id int64) (*model.Session, error) {
	var sess model.Session
	err := s.db.Pool().QueryRow(ctx, query, id).Scan(
		&sess.ID, &sess.UserID, &sess.WorkOSSessionID, &sess.ExpiresAt, &sess.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Create(ctx context.Context, sess *model.Session) error {
	return s.db.Pool().QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, workos_session_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		sess.ID, sess.UserID, sess.WorkOSSessionID, sess.ExpiresAt,
	).Scan(&sess.CreatedAt)
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Pool().Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *sessionStore) DeleteExpired(ctx context.Context) error {
	_, err := s.db.Pool().Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	return err
}
