package store

import (
	"context"
	"errors"

	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/model"
	"github.com/jackc/pgx/v5"
)

type userStore struct {
	db *db.DB
}

func newUserStore(database *db.DB) *userStore {
	return &userStore{db: database}
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.Pool().QueryRow(ctx,
		`SELECT id, name, email, avatar_url, workos_id, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(
		&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.WorkOSID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *model.User) error {
	return s.db.Pool().QueryRow(ctx, `
		INSERT INTO users (id, name, email, avatar_url, workos_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.AvatarURL, u.WorkOSID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

// UpsertByWorkOSID keeps the local user row in sync with the identity
// provider; a returning user keeps their id.
func (s *userStore) UpsertByWorkOSID(ctx context.Context, u *model.User) error {
	return s.db.Pool().QueryRow(ctx, `
		INSERT INTO users (id, name, email, avatar_url, workos_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workos_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		u.ID, u.Name, u.Email, u.AvatarURL, u.WorkOSID,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (s *userStore) Update(ctx context.Context, u *model.User) error {
	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE users SET name = $2, email = $3, avatar_url = $4, updated_at = now()
		WHERE id = $1`,
		u.ID, u.Name, u.Email, u.AvatarURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
