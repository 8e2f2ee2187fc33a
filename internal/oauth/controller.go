// Package oauth drives the authorization code flow. The flow spans two
// independent executions, before and after the provider redirect, that
// communicate only through the session mailbox; there is no in-memory
// state between them.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conduithq/conduit/common/id"
	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/pkce"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/rpc"
	"github.com/conduithq/conduit/internal/store"
	"github.com/conduithq/conduit/internal/txn"
	"github.com/google/uuid"
)

var (
	// ErrNotCallback means the request carried no state parameter and
	// is not an authorization response at all.
	ErrNotCallback = errors.New("not an authorization callback")

	// ErrStateMismatch means the callback state did not match the
	// stored nonce. Handlers must not surface this to the user.
	ErrStateMismatch = errors.New("callback state does not match stored nonce")

	// ErrTransactionExpired means no transaction was pending when the
	// callback arrived.
	ErrTransactionExpired = errors.New("authorization transaction expired")

	// ErrProviderDenied means the provider reported an authorization
	// failure instead of a code.
	ErrProviderDenied = errors.New("provider denied authorization")

	// ErrExchangeFailed means the code exchange was rejected.
	ErrExchangeFailed = errors.New("authorization code exchange failed")
)

// FunctionsClient is the slice of the functions client the controller
// needs.
type FunctionsClient interface {
	StartAuthorization(ctx context.Context, req rpc.StartAuthorizationRequest) (*rpc.StartAuthorizationResponse, error)
	ExchangeAuthorization(ctx context.Context, req rpc.ExchangeAuthorizationRequest) (*rpc.ExchangeAuthorizationResponse, error)
	RefreshToken(ctx context.Context, req rpc.RefreshTokenRequest) error
}

// ChangePublisher publishes connection changes to the realtime stream.
type ChangePublisher interface {
	PublishConnection(ctx context.Context, op realtime.Op, conn *model.Connection) error
}

type Controller struct {
	client       FunctionsClient
	mailbox      txn.Store
	connections  store.ConnectionStore
	transactions store.TransactionStore
	publisher    ChangePublisher
	logger       *slog.Logger

	newID   func() int64
	newUUID func() string
}

func NewController(
	client FunctionsClient,
	mailbox txn.Store,
	connections store.ConnectionStore,
	transactions store.TransactionStore,
	publisher ChangePublisher,
	log *slog.Logger,
) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		client:       client,
		mailbox:      mailbox,
		connections:  connections,
		transactions: transactions,
		publisher:    publisher,
		logger:       log,
		newID:        id.New,
		newUUID:      uuid.NewString,
	}
}

type StartResult struct {
	AuthorizationURL string
	TransactionID    string
}

// Start begins a new authorization. Any transaction already pending for
// the session is superseded: the mailbox write overwrites its nonce, so
// a late callback for the old transaction can only fail the state check.
func (c *Controller) Start(ctx context.Context, userID int64, sessionID string, connectorID int64, redirectURI string) (*StartResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:      logger.Ptr(userID),
		ConnectorID: logger.Ptr(connectorID),
		Component:   "conduit.oauth.controller",
	})

	resp, err := c.client.StartAuthorization(ctx, rpc.StartAuthorizationRequest{
		ConnectorID: connectorID,
		UserID:      userID,
		RedirectURI: redirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("starting authorization: %w", err)
	}

	transactionID := c.newUUID()
	if err := c.mailbox.Put(ctx, sessionID, txn.Pending{
		State:         resp.State,
		Verifier:      resp.CodeVerifier,
		TransactionID: transactionID,
		ConnectorID:   connectorID,
	}); err != nil {
		return nil, fmt.Errorf("storing pending transaction: %w", err)
	}

	audit := &model.OAuthTransaction{
		ID:           transactionID,
		UserID:       userID,
		ConnectorID:  connectorID,
		State:        resp.State,
		VerifierHash: pkce.HashVerifier(resp.CodeVerifier),
		RedirectURI:  redirectURI,
		Status:       model.TransactionStatusStarted,
	}
	if err := c.transactions.Create(ctx, audit); err != nil {
		return nil, fmt.Errorf("recording transaction: %w", err)
	}

	c.logger.InfoContext(ctx, "authorization started", "transaction_id", transactionID)
	return &StartResult{
		AuthorizationURL: resp.AuthorizationURL,
		TransactionID:    transactionID,
	}, nil
}

// Callback carries the query parameters of an authorization response.
type Callback struct {
	Code             string
	State            string
	ErrorParam       string
	ErrorDescription string
}

type CallbackResult struct {
	Connection    *model.Connection
	ConnectorName string
}

// HandleCallback resumes the flow after the provider redirect. The
// mailbox is cleared on every terminal outcome so a refresh or replay
// of the same callback can never be processed twice.
func (c *Controller) HandleCallback(ctx context.Context, userID int64, sessionID string, cb Callback) (*CallbackResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "conduit.oauth.controller",
	})

	if cb.State == "" {
		return nil, ErrNotCallback
	}

	pending, err := c.mailbox.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading pending transaction: %w", err)
	}
	if pending == nil {
		c.clearMailbox(ctx, sessionID)
		return nil, ErrTransactionExpired
	}

	if cb.State != pending.State {
		// Do not reveal whether a transaction existed; the handler
		// surfaces nothing for this outcome.
		c.clearMailbox(ctx, sessionID)
		c.logger.WarnContext(ctx, "callback state mismatch, aborting")
		return nil, ErrStateMismatch
	}

	if cb.ErrorParam != "" {
		c.clearMailbox(ctx, sessionID)
		c.failAudit(ctx, pending.TransactionID, cb.ErrorParam, cb.ErrorDescription)
		// The description is provider-controlled free text.
		c.logger.WarnContext(ctx, "provider denied authorization",
			"error", cb.ErrorParam,
			"description", logger.Truncate(cb.ErrorDescription, 200))
		if cb.ErrorDescription != "" {
			return nil, fmt.Errorf("%w: %s", ErrProviderDenied, cb.ErrorDescription)
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderDenied, cb.ErrorParam)
	}

	resp, err := c.client.ExchangeAuthorization(ctx, rpc.ExchangeAuthorizationRequest{
		Code:         cb.Code,
		State:        cb.State,
		CodeVerifier: pending.Verifier,
	})
	if err != nil {
		c.clearMailbox(ctx, sessionID)
		c.failAudit(ctx, pending.TransactionID, "exchange_failed", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	c.clearMailbox(ctx, sessionID)
	if err := c.transactions.MarkCompleted(ctx, pending.TransactionID); err != nil {
		c.logger.ErrorContext(ctx, "marking transaction completed failed", "error", err, "transaction_id", pending.TransactionID)
	}

	connection := &model.Connection{
		ID:          c.newID(),
		UserID:      userID,
		ConnectorID: resp.ConnectorID,
		Status:      model.ConnectionStatusActive,
		Scopes:      resp.Scopes,
	}
	if err := c.connections.Upsert(ctx, connection); err != nil {
		return nil, fmt.Errorf("saving connection: %w", err)
	}

	if err := c.publisher.PublishConnection(ctx, realtime.OpInsert, connection); err != nil {
		c.logger.ErrorContext(ctx, "publishing connection change failed", "error", err, "connection_id", connection.ID)
	}

	c.logger.InfoContext(ctx, "authorization completed",
		"transaction_id", pending.TransactionID,
		"connection_id", connection.ID,
		"connector_id", resp.ConnectorID)
	return &CallbackResult{Connection: connection, ConnectorName: resp.ConnectorName}, nil
}

// Refresh asks the functions layer to refresh a connection's token.
// Ownership is checked the same way Disconnect checks it. The local
// cache is not touched; the realtime stream carries the updated expiry
// back when the refresh lands.
func (c *Controller) Refresh(ctx context.Context, userID, connectionID int64, force bool) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:       logger.Ptr(userID),
		ConnectionID: logger.Ptr(connectionID),
		Component:    "conduit.oauth.controller",
	})

	connection, err := c.connections.GetByID(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("loading connection: %w", err)
	}
	if connection.UserID != userID {
		return store.ErrNotFound
	}

	if err := c.client.RefreshToken(ctx, rpc.RefreshTokenRequest{
		ConnectionID: connectionID,
		Force:        force,
	}); err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}
	return nil
}

// Disconnect revokes a connection. The row is kept for audit and the
// change is published so every cache drops the live entry.
func (c *Controller) Disconnect(ctx context.Context, userID, connectionID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:       logger.Ptr(userID),
		ConnectionID: logger.Ptr(connectionID),
		Component:    "conduit.oauth.controller",
	})

	connection, err := c.connections.GetByID(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("loading connection: %w", err)
	}
	if connection.UserID != userID {
		return store.ErrNotFound
	}
	if connection.Status.IsTerminal() {
		// Already revoked; a second disconnect changes nothing.
		return nil
	}

	if err := c.connections.UpdateStatus(ctx, connectionID, model.ConnectionStatusRevoked, nil); err != nil {
		return fmt.Errorf("revoking connection: %w", err)
	}

	connection.Status = model.ConnectionStatusRevoked
	if err := c.publisher.PublishConnection(ctx, realtime.OpDelete, connection); err != nil {
		c.logger.ErrorContext(ctx, "publishing disconnect failed", "error", err)
	}

	c.logger.InfoContext(ctx, "connection revoked")
	return nil
}

func (c *Controller) clearMailbox(ctx context.Context, sessionID string) {
	if err := c.mailbox.Clear(ctx, sessionID); err != nil {
		c.logger.ErrorContext(ctx, "clearing pending transaction failed", "error", err)
	}
}

func (c *Controller) failAudit(ctx context.Context, transactionID, code, description string) {
	msg := code
	if description != "" {
		msg = fmt.Sprintf("%s: %s", code, description)
	}
	if err := c.transactions.MarkFailed(ctx, transactionID, &msg); err != nil {
		c.logger.ErrorContext(ctx, "marking transaction failed errored", "error", err, "transaction_id", transactionID)
	}
}
