package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/model"
	"github.com/jackc/pgx/v5"
)

type connectorStore struct {
	db *db.DB
}

func newConnectorStore(database *db.DB) *connectorStore {
	return &connectorStore{db: database}
}

const connectorColumns = `id, slug, name, auth_type, authorize_url, token_url, revoke_url,
	scopes, endpoint_url, tools, created_at, updated_at`

func scanConnector(row pgx.Row) (*model.Connector, error) {
	var c model.Connector
	err := row.Scan(
		&c.ID, &c.Slug, &c.Name, &c.AuthType, &c.AuthorizeURL, &c.TokenURL,
		&c.RevokeURL, &c.Scopes, &c.EndpointURL, &c.Tools, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *connectorStore) GetByID(ctx context.Context, id int64) (*model.Connector, error) {
	row := s.db.Pool().QueryRow(ctx,
		`SELECT `+connectorColumns+` FROM connectors WHERE id = $1`, id)
	return scanConnector(row)
}

func (s *connectorStore) GetBySlug(ctx context.Context, slug string) (*model.Connector, error) {
	row := s.db.Pool().QueryRow(ctx,
		`SELECT `+connectorColumns+` FROM connectors WHERE slug = $1`, slug)
	return scanConnector(row)
}

func (s *connectorStore) Upsert(ctx context.Context, c *model.Connector) error {
	row := s.db.Pool().QueryRow(ctx, `
		INSERT INTO connectors (id, slug, name, auth_type, authorize_url, token_url, revoke_url, scopes, endpoint_url, tools)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			auth_type = EXCLUDED.auth_type,
			authorize_url = EXCLUDED.authorize_url,
			token_url = EXCLUDED.token_url,
			revoke_url = EXCLUDED.revoke_url,
			scopes = EXCLUDED.scopes,
			endpoint_url = EXCLUDED.endpoint_url,
			tools = EXCLUDED.tools,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		c.ID, c.Slug, c.Name, c.AuthType, c.AuthorizeURL, c.TokenURL,
		c.RevokeURL, c.Scopes, c.EndpointURL, c.Tools,
	)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("upserting connector %q: %w", c.Slug, err)
	}
	return nil
}

func (s *connectorStore) List(ctx context.Context) ([]model.Connector, error) {
	rows, err := s.db.Pool().Query(ctx,
		`SELECT `+connectorColumns+` FROM connectors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connectors []model.Connector
	for rows.Next() {
		var c model.Connector
		if err := rows.Scan(
			&c.ID, &c.Slug, &c.Name, &c.AuthType, &c.AuthorizeURL, &c.TokenURL,
			&c.RevokeURL, &c.Scopes, &c.EndpointURL, &c.Tools, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	return connectors, rows.Err()
}
