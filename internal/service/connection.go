package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conduithq/conduit/common/id"
	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/store"
)

var (
	// ErrOAuthRequired means the connector cannot be connected with a
	// plain secret; the authorization flow must be used instead.
	ErrOAuthRequired = errors.New("connector requires the authorization flow")

	ErrUnknownConnector = errors.New("unknown connector")
)

// Revoker revokes a connection; the flow controller provides it so
// revocation semantics live in one place.
type Revoker interface {
	Disconnect(ctx context.Context, userID, connectionID int64) error
}

// ChangePublisher publishes connection changes to the realtime stream.
type ChangePublisher interface {
	PublishConnection(ctx context.Context, op realtime.Op, conn *model.Connection) error
}

// ConnectorDetail joins a connector with the caller's connection, if
// any, and the connector's tool catalog.
type ConnectorDetail struct {
	Connector  model.Connector   `json:"connector"`
	Connection *model.Connection `json:"connection,omitempty"`
	Tools      []string          `json:"tools,omitempty"`
}

type ConnectionService interface {
	// Connect links an api_key or no-auth connector directly. The
	// secret is never inspected here, only referenced.
	Connect(ctx context.Context, userID int64, slug, secretRef string) (*model.Connection, error)
	Disconnect(ctx context.Context, userID, connectionID int64) error
	ListForUser(ctx context.Context, userID int64) ([]model.Connection, error)
	// GetBySlug returns (nil, nil) for an unknown slug: absence is a
	// normal outcome, not a fault.
	GetBySlug(ctx context.Context, userID int64, slug string) (*ConnectorDetail, error)
}

type connectionService struct {
	connectors  store.ConnectorStore
	connections store.ConnectionStore
	revoker     Revoker
	publisher   ChangePublisher
	logger      *slog.Logger
}

func NewConnectionService(
	connectors store.ConnectorStore,
	connections store.ConnectionStore,
	revoker Revoker,
	publisher ChangePublisher,
	log *slog.Logger,
) ConnectionService {
	if log == nil {
		log = slog.Default()
	}
	return &connectionService{
		connectors:  connectors,
		connections: connections,
		revoker:     revoker,
		publisher:   publisher,
		logger:      log,
	}
}

func (s *connectionService) Connect(ctx context.Context, userID int64, slug, secretRef string) (*model.Connection, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "conduit.service.connection",
	})

	connector, err := s.connectors.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownConnector
		}
		return nil, fmt.Errorf("loading connector %q: %w", slug, err)
	}
	if connector.AuthType == model.AuthTypeOAuth {
		return nil, ErrOAuthRequired
	}

	connection := &model.Connection{
		ID:          id.New(),
		UserID:      userID,
		ConnectorID: connector.ID,
		Status:      model.ConnectionStatusActive,
	}
	if connector.AuthType == model.AuthTypeAPIKey {
		connection.SecretRef = &secretRef
	}

	if err := s.connections.Upsert(ctx, connection); err != nil {
		return nil, fmt.Errorf("saving connection: %w", err)
	}

	if err := s.publisher.PublishConnection(ctx, realtime.OpInsert, connection); err != nil {
		s.logger.ErrorContext(ctx, "publishing connection change failed", "error", err, "connection_id", connection.ID)
	}

	s.logger.InfoContext(ctx, "connection created", "connection_id", connection.ID, "connector", slug)
	return connection, nil
}

func (s *connectionService) Disconnect(ctx context.Context, userID, connectionID int64) error {
	return s.revoker.Disconnect(ctx, userID, connectionID)
}

func (s *connectionService) ListForUser(ctx context.Context, userID int64) ([]model.Connection, error) {
	connections, err := s.connections.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	return connections, nil
}

func (s *connectionService) GetBySlug(ctx context.Context, userID int64, slug string) (*ConnectorDetail, error) {
	connector, err := s.connectors.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading connector %q: %w", slug, err)
	}

	detail := &ConnectorDetail{
		Connector: *connector,
		Tools:     connector.Tools,
	}

	connection, err := s.connections.GetActive(ctx, userID, connector.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading connection: %w", err)
	}
	detail.Connection = connection

	return detail, nil
}
