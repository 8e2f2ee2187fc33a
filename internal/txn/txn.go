// Package txn holds the per-session OAuth transaction mailbox: the
// state nonce and code verifier that must survive the round trip to the
// provider but nothing longer. Entries expire; a stale transaction must
// never complete.
package txn

import (
	"context"
	"time"
)

// Pending is the in-flight authorization state for one session.
// The verifier lives here and only here until the callback consumes it.
type Pending struct {
	State         string `json:"state"`
	Verifier      string `json:"verifier"`
	TransactionID string `json:"transaction_id"` // audit row uuid
	ConnectorID   int64  `json:"connector_id"`
}

// Store is the session mailbox. Put overwrites any existing entry for
// the session (starting a second authorization supersedes the first).
// Get returns nil when nothing is pending. Clear is idempotent.
type Store interface {
	Put(ctx context.Context, sessionID string, pending Pending) error
	Get(ctx context.Context, sessionID string) (*Pending, error)
	Clear(ctx context.Context, sessionID string) error
}

// DefaultTTL bounds how long a transaction may wait for its callback.
const DefaultTTL = 10 * time.Minute
