package store

import (
	"context"
	"errors"

	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/model"
	"github.com/jackc/pgx/v5"
)

type preferenceStore struct {
	db *db.DB
}

func newPreferenceStore(database *db.DB) *preferenceStore {
	return &preferenceStore{db: database}
}

func (s *preferenceStore) GetByUser(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	var p model.NotificationPreference
	err := s.db.Pool().QueryRow(ctx, `
		SELECT user_id, health_alerts_enabled, alert_email, updated_at
		FROM notification_preferences WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.HealthAlertsEnabled, &p.AlertEmail, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *preferenceStore) Upsert(ctx context.Context, p *model.NotificationPreference) error {
	return s.db.Pool().QueryRow(ctx, `
		INSERT INTO notification_preferences (user_id, health_alerts_enabled, alert_email)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			health_alerts_enabled = EXCLUDED.health_alerts_enabled,
			alert_email = EXCLUDED.alert_email,
			updated_at = now()
		RETURNING updated_at`,
		p.UserID, p.HealthAlertsEnabled, p.AlertEmail,
	).Scan(&p.UpdatedAt)
}

func (s *preferenceStore) ListOptedIn(ctx context.Context) ([]model.NotificationPreference, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT user_id, health_alerts_enabled, alert_email, updated_at
		FROM notification_preferences WHERE health_alerts_enabled`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		var p model.NotificationPreference
		if err := rows.Scan(&p.UserID, &p.HealthAlertsEnabled, &p.AlertEmail, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}
