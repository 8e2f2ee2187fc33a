package model

import "time"

type TransactionStatus string

const (
	TransactionStatusStarted   TransactionStatus = "started"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// OAuthTransaction is the durable audit record of an authorization
// attempt. The code verifier is never stored here, only its hash; the
// verifier itself lives in the session mailbox until the callback.
type OAuthTransaction struct {
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ID           string            `json:"id"` // uuid
	State        string            `json:"-"`
	VerifierHash string            `json:"-"`
	RedirectURI  string            `json:"redirect_uri"`
	Status       TransactionStatus `json:"status"`
	Error        *string           `json:"error,omitempty"`
	UserID       int64             `json:"user_id"`
	ConnectorID  int64             `json:"connector_id"`
}
