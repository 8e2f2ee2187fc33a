package store

import (
	"context"
	"errors"
	"time"

	"github.com/conduithq/conduit/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits an id that already
// exists. Callers treating redelivery as a no-op branch on it with
// errors.Is.
var ErrDuplicate = errors.New("already exists")

// ConnectorStore defines the contract for connector catalog data access
type ConnectorStore interface {
	GetByID(ctx context.Context, id int64) (*model.Connector, error)
	GetBySlug(ctx context.Context, slug string) (*model.Connector, error)
	Upsert(ctx context.Context, connector *model.Connector) error
	List(ctx context.Context) ([]model.Connector, error)
}

// ConnectionStore defines the contract for connection data access
type ConnectionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Connection, error)
	GetActive(ctx context.Context, userID, connectorID int64) (*model.Connection, error)
	// Upsert inserts or replaces the single non-revoked connection for
	// (user, connector). Revoked rows are never touched.
	Upsert(ctx context.Context, conn *model.Connection) error
	UpdateStatus(ctx context.Context, id int64, status model.ConnectionStatus, errMsg *string) error
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
	ListByUser(ctx context.Context, userID int64) ([]model.Connection, error)
	ListActive(ctx context.Context) ([]model.Connection, error)
}

// TransactionStore defines the contract for OAuth transaction audit rows
type TransactionStore interface {
	GetByID(ctx context.Context, id string) (*model.OAuthTransaction, error)
	Create(ctx context.Context, txn *model.OAuthTransaction) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg *string) error
}

// JobStore defines the contract for pipeline job data access
type JobStore interface {
	GetByID(ctx context.Context, id int64) (*model.PipelineJob, error)
	Upsert(ctx context.Context, job *model.PipelineJob) error
	ListByUser(ctx context.Context, userID int64, limit int32) ([]model.PipelineJob, error)
	ListRecent(ctx context.Context, limit int32) ([]model.PipelineJob, error)
	// AppendEvent returns ErrDuplicate when the event id was already
	// ingested.
	AppendEvent(ctx context.Context, event *model.PipelineEvent) error
	ListEvents(ctx context.Context, jobID int64) ([]model.PipelineEvent, error)
	ListRecentEvents(ctx context.Context, limit int32) ([]model.PipelineEvent, error)
}

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	UpsertByWorkOSID(ctx context.Context, user *model.User) error
}

// SessionStore defines the contract for session data access
type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	GetValid(ctx context.Context, id int64) (*model.Session, error) // checks expiry
	Create(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context) error
}

// PreferenceStore defines the contract for notification preference access
type PreferenceStore interface {
	GetByUser(ctx context.Context, userID int64) (*model.NotificationPreference, error)
	Upsert(ctx context.Context, pref *model.NotificationPreference) error
	ListOptedIn(ctx context.Context) ([]model.NotificationPreference, error)
}
