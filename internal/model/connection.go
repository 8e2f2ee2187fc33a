package model

import "time"

// ConnectionStatus represents the lifecycle state of a connection
type ConnectionStatus string

const (
	ConnectionStatusPending ConnectionStatus = "pending"
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusExpired ConnectionStatus = "expired"
	ConnectionStatusRevoked ConnectionStatus = "revoked"
	ConnectionStatusError   ConnectionStatus = "error"
)

type Connection struct {
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	LastUsedAt       *time.Time       `json:"last_used_at,omitempty"`
	SecretRef        *string          `json:"-"` // opaque reference, never the secret itself
	RefreshSecretRef *string          `json:"-"`
	Error            *string          `json:"error,omitempty"`
	Status           ConnectionStatus `json:"status"`
	Scopes           []string         `json:"scopes,omitempty"`
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	ConnectorID      int64            `json:"connector_id"`
}

// IsTerminal reports whether the connection can no longer be used
// without re-authorizing.
func (s ConnectionStatus) IsTerminal() bool {
	return s == ConnectionStatusRevoked
}
