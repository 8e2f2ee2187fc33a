package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/model"
	"github.com/jackc/pgx/v5"
)

type connectionStore struct {
	db *db.DB
}

func newConnectionStore(database *db.DB) *connectionStore {
	return &connectionStore{db: database}
}

const connectionColumns = `id, user_id, connector_id, status, secret_ref, refresh_secret_ref,
	scopes, error, expires_at, last_used_at, created_at, updated_at`

func scanConnection(row pgx.Row) (*model.Connection, error) {
	var c model.Connection
	err := row.Scan(
		&c.ID, &c.UserID, &c.ConnectorID, &c.Status, &c.SecretRef, &c.RefreshSecretRef,
		&c.Scopes, &c.Error, &c.ExpiresAt, &c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *connectionStore) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	row := s.db.Pool().QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
	return scanConnection(row)
}

func (s *connectionStore) GetActive(ctx context.Context, userID, connectorID int64) (*model.Connection, error) {
	row := s.db.Pool().QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE user_id = $1 AND connector_id = $2 AND status <> 'revoked'`,
		userID, connectorID)
	return scanConnection(row)
}

// Upsert relies on the partial unique index on (user_id, connector_id)
// WHERE status <> 'revoked': re-authorizing replaces the live row in
// place instead of accumulating duplicates, while revoked history stays.
func (s *connectionStore) Upsert(ctx context.Context, c *model.Connection) error {
	row := s.db.Pool().QueryRow(ctx, `
		INSERT INTO connections (id, user_id, connector_id, status, secret_ref, refresh_secret_ref, scopes, error, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, connector_id) WHERE status <> 'revoked' DO UPDATE SET
			status = EXCLUDED.status,
			secret_ref = EXCLUDED.secret_ref,
			refresh_secret_ref = EXCLUDED.refresh_secret_ref,
			scopes = EXCLUDED.scopes,
			error = EXCLUDED.error,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		c.ID, c.UserID, c.ConnectorID, c.Status, c.SecretRef, c.RefreshSecretRef,
		c.Scopes, c.Error, c.ExpiresAt,
	)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("upserting connection for user %d connector %d: %w", c.UserID, c.ConnectorID, err)
	}
	return nil
}

func (s *connectionStore) UpdateStatus(ctx context.Context, id int64, status model.ConnectionStatus, errMsg *string) error {
	tag, err := s.db.Pool().Exec(ctx,
		`UPDATE connections SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *connectionStore) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.Pool().Exec(ctx,
		`UPDATE connections SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

func (s *connectionStore) ListByUser(ctx context.Context, userID int64) ([]model.Connection, error) {
	rows, err := s.db.Pool().Query(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE user_id = $1 AND status <> 'revoked'
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConnections(rows)
}

func (s *connectionStore) ListActive(ctx context.Context) ([]model.Connection, error) {
	rows, err := s.db.Pool().Query(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE status = 'active'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConnections(rows)
}

func collectConnections(rows pgx.Rows) ([]model.Connection, error) {
	var connections []model.Connection
	for rows.Next() {
		var c model.Connection
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.ConnectorID, &c.Status, &c.SecretRef, &c.RefreshSecretRef,
			&c.Scopes, &c.Error, &c.ExpiresAt, &c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		connections = append(connections, c)
	}
	return connections, rows.Err()
}
