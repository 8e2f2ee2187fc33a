package store

import (
	"context"
	"errors"

	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/model"
	"github.com/jackc/pgx/v5"
)

type transactionStore struct {
	db *db.DB
}

func newTransactionStore(database *db.DB) *transactionStore {
	return &transactionStore{db: database}
}

func (s *transactionStore) GetByID(ctx context.Context, id string) (*model.OAuthTransaction, error) {
	var t model.OAuthTransaction
	err := s.db.Pool().QueryRow(ctx, `
		SELECT id, user_id, connector_id, state, verifier_hash, redirect_uri, status, error, created_at, updated_at
		FROM oauth_transactions WHERE id = $1`, id,
	).Scan(
		&t.ID, &t.UserID, &t.ConnectorID, &t.State, &t.VerifierHash,
		&t.RedirectURI, &t.Status, &t.Error, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *transactionStore) Create(ctx context.Context, t *model.OAuthTransaction) error {
	return s.db.Pool().QueryRow(ctx, `
		INSERT INTO oauth_transactions (id, user_id, connector_id, state, verifier_hash, redirect_uri, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		t.ID, t.UserID, t.ConnectorID, t.State, t.VerifierHash, t.RedirectURI, t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (s *transactionStore) MarkCompleted(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, model.TransactionStatusCompleted, nil)
}

func (s *transactionStore) MarkFailed(ctx context.Context, id string, errMsg *string) error {
	return s.setStatus(ctx, id, model.TransactionStatusFailed, errMsg)
}

func (s *transactionStore) setStatus(ctx context.Context, id string, status model.TransactionStatus, errMsg *string) error {
	tag, err := s.db.Pool().Exec(ctx,
		`UPDATE oauth_transactions SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
