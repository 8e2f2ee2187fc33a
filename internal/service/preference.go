package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/store"
)

// PreferenceService manages the durable health-alert opt-in.
type PreferenceService interface {
	Get(ctx context.Context, userID int64) (*model.NotificationPreference, error)
	Update(ctx context.Context, userID int64, enabled bool, alertEmail *string) (*model.NotificationPreference, error)
}

type preferenceService struct {
	preferences store.PreferenceStore
}

func NewPreferenceService(preferences store.PreferenceStore) PreferenceService {
	return &preferenceService{preferences: preferences}
}

// Get returns the user's preference, defaulting to opted-out when no
// row exists yet.
func (s *preferenceService) Get(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	pref, err := s.preferences.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &model.NotificationPreference{UserID: userID}, nil
		}
		return nil, fmt.Errorf("loading preference: %w", err)
	}
	return pref, nil
}

func (s *preferenceService) Update(ctx context.Context, userID int64, enabled bool, alertEmail *string) (*model.NotificationPreference, error) {
	pref := &model.NotificationPreference{
		UserID:              userID,
		HealthAlertsEnabled: enabled,
		AlertEmail:          alertEmail,
	}
	if err := s.preferences.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("saving preference: %w", err)
	}
	return pref, nil
}
