package model

import "time"

// NotificationPreference is a user's durable opt-in to health alerts.
type NotificationPreference struct {
	UpdatedAt           time.Time `json:"updated_at"`
	AlertEmail          *string   `json:"alert_email,omitempty"`
	UserID              int64     `json:"user_id"`
	HealthAlertsEnabled bool      `json:"health_alerts_enabled"`
}
