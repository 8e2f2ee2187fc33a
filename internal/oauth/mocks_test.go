package oauth_test

import (
	"context"
	"time"

	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/rpc"
)

type mockFunctionsClient struct {
	startFn    func(ctx context.Context, req rpc.StartAuthorizationRequest) (*rpc.StartAuthorizationResponse, error)
	exchangeFn func(ctx context.Context, req rpc.ExchangeAuthorizationRequest) (*rpc.ExchangeAuthorizationResponse, error)
	refreshFn  func(ctx context.Context, req rpc.RefreshTokenRequest) error

	exchangeCalls int
	refreshCalls  int
}

func (m *mockFunctionsClient) StartAuthorization(ctx context.Context, req rpc.StartAuthorizationRequest) (*rpc.StartAuthorizationResponse, error) {
	if m.startFn != nil {
		return m.startFn(ctx, req)
	}
	return &rpc.StartAuthorizationResponse{
		AuthorizationURL: "https://provider.example.com/authorize",
		State:            "nonce-default",
		CodeVerifier:     "verifier-default",
	}, nil
}

func (m *mockFunctionsClient) ExchangeAuthorization(ctx context.Context, req rpc.ExchangeAuthorizationRequest) (*rpc.ExchangeAuthorizationResponse, error) {
	m.exchangeCalls++
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, req)
	}
	return &rpc.ExchangeAuthorizationResponse{ConnectorID: 3, ConnectorName: "GitHub"}, nil
}

func (m *mockFunctionsClient) RefreshToken(ctx context.Context, req rpc.RefreshTokenRequest) error {
	m.refreshCalls++
	if m.refreshFn != nil {
		return m.refreshFn(ctx, req)
	}
	return nil
}

type mockConnectionStore struct {
	getByIDFn      func(ctx context.Context, id int64) (*model.Connection, error)
	upsertFn       func(ctx context.Context, conn *model.Connection) error
	updateStatusFn func(ctx context.Context, id int64, status model.ConnectionStatus, errMsg *string) error

	upsertCalls int
}

func (m *mockConnectionStore) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockConnectionStore) GetActive(_ context.Context, _, _ int64) (*model.Connection, error) {
	return nil, nil
}

func (m *mockConnectionStore) Upsert(ctx context.Context, conn *model.Connection) error {
	m.upsertCalls++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, conn)
	}
	return nil
}

func (m *mockConnectionStore) UpdateStatus(ctx context.Context, id int64, status model.ConnectionStatus, errMsg *string) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, errMsg)
	}
	return nil
}

func (m *mockConnectionStore) TouchLastUsed(_ context.Context, _ int64, _ time.Time) error {
	return nil
}

func (m *mockConnectionStore) ListByUser(_ context.Context, _ int64) ([]model.Connection, error) {
	return nil, nil
}

func (m *mockConnectionStore) ListActive(_ context.Context) ([]model.Connection, error) {
	return nil, nil
}

type mockTransactionStore struct {
	createFn        func(ctx context.Context, txn *model.OAuthTransaction) error
	markCompletedFn func(ctx context.Context, id string) error
	markFailedFn    func(ctx context.Context, id string, errMsg *string) error

	created   []*model.OAuthTransaction
	completed []string
	failed    []string
}

func (m *mockTransactionStore) GetByID(_ context.Context, _ string) (*model.OAuthTransaction, error) {
	return nil, nil
}

func (m *mockTransactionStore) Create(ctx context.Context, t *model.OAuthTransaction) error {
	m.created = append(m.created, t)
	if m.createFn != nil {
		return m.createFn(ctx, t)
	}
	return nil
}

func (m *mockTransactionStore) MarkCompleted(ctx context.Context, id string) error {
	m.completed = append(m.completed, id)
	if m.markCompletedFn != nil {
		return m.markCompletedFn(ctx, id)
	}
	return nil
}

func (m *mockTransactionStore) MarkFailed(ctx context.Context, id string, errMsg *string) error {
	m.failed = append(m.failed, id)
	if m.markFailedFn != nil {
		return m.markFailedFn(ctx, id, errMsg)
	}
	return nil
}

type mockPublisher struct {
	publishFn func(ctx context.Context, op realtime.Op, conn *model.Connection) error

	published []publishedChange
}

type publishedChange struct {
	op   realtime.Op
	conn *model.Connection
}

func (m *mockPublisher) PublishConnection(ctx context.Context, op realtime.Op, conn *model.Connection) error {
	m.published = append(m.published, publishedChange{op: op, conn: conn})
	if m.publishFn != nil {
		return m.publishFn(ctx, op, conn)
	}
	return nil
}
