package service_test

import (
	"context"
	"time"

	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/store"
)

type mockConnectorStore struct {
	getBySlugFn func(ctx context.Context, slug string) (*model.Connector, error)
}

func (m *mockConnectorStore) GetByID(_ context.Context, _ int64) (*model.Connector, error) {
	return nil, store.ErrNotFound
}

func (m *mockConnectorStore) GetBySlug(ctx context.Context, slug string) (*model.Connector, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, store.ErrNotFound
}

func (m *mockConnectorStore) Upsert(_ context.Context, _ *model.Connector) error {
	return nil
}

func (m *mockConnectorStore) List(_ context.Context) ([]model.Connector, error) {
	return nil, nil
}

type mockConnectionStore struct {
	getActiveFn  func(ctx context.Context, userID, connectorID int64) (*model.Connection, error)
	upsertFn     func(ctx context.Context, conn *model.Connection) error
	listByUserFn func(ctx context.Context, userID int64) ([]model.Connection, error)

	upsertCalls int
	touchCalls  int
}

func (m *mockConnectionStore) GetByID(_ context.Context, _ int64) (*model.Connection, error) {
	return nil, store.ErrNotFound
}

func (m *mockConnectionStore) GetActive(ctx context.Context, userID, connectorID int64) (*model.Connection, error) {
	if m.getActiveFn != nil {
		return m.getActiveFn(ctx, userID, connectorID)
	}
	return nil, store.ErrNotFound
}

func (m *mockConnectionStore) Upsert(ctx context.Context, conn *model.Connection) error {
	m.upsertCalls++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, conn)
	}
	return nil
}

func (m *mockConnectionStore) UpdateStatus(_ context.Context, _ int64, _ model.ConnectionStatus, _ *string) error {
	return nil
}

func (m *mockConnectionStore) TouchLastUsed(_ context.Context, _ int64, _ time.Time) error {
	m.touchCalls++
	return nil
}

func (m *mockConnectionStore) ListByUser(ctx context.Context, userID int64) ([]model.Connection, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockConnectionStore) ListActive(_ context.Context) ([]model.Connection, error) {
	return nil, nil
}

type mockJobStore struct {
	getByIDFn     func(ctx context.Context, id int64) (*model.PipelineJob, error)
	upsertFn      func(ctx context.Context, job *model.PipelineJob) error
	appendEventFn func(ctx context.Context, event *model.PipelineEvent) error
	listEventsFn  func(ctx context.Context, jobID int64) ([]model.PipelineEvent, error)
}

func (m *mockJobStore) GetByID(ctx context.Context, jobID int64) (*model.PipelineJob, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, jobID)
	}
	return nil, store.ErrNotFound
}

func (m *mockJobStore) Upsert(ctx context.Context, job *model.PipelineJob) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, job)
	}
	return nil
}

func (m *mockJobStore) ListByUser(_ context.Context, _ int64, _ int32) ([]model.PipelineJob, error) {
	return nil, nil
}

func (m *mockJobStore) ListRecent(_ context.Context, _ int32) ([]model.PipelineJob, error) {
	return nil, nil
}

func (m *mockJobStore) AppendEvent(ctx context.Context, event *model.PipelineEvent) error {
	if m.appendEventFn != nil {
		return m.appendEventFn(ctx, event)
	}
	return nil
}

func (m *mockJobStore) ListEvents(ctx context.Context, jobID int64) ([]model.PipelineEvent, error) {
	if m.listEventsFn != nil {
		return m.listEventsFn(ctx, jobID)
	}
	return nil, nil
}

func (m *mockJobStore) ListRecentEvents(_ context.Context, _ int32) ([]model.PipelineEvent, error) {
	return nil, nil
}

type mockRevoker struct {
	disconnectFn func(ctx context.Context, userID, connectionID int64) error
	calls        int
}

func (m *mockRevoker) Disconnect(ctx context.Context, userID, connectionID int64) error {
	m.calls++
	if m.disconnectFn != nil {
		return m.disconnectFn(ctx, userID, connectionID)
	}
	return nil
}

type mockPublisher struct {
	connections []realtime.Op
	jobs        []realtime.Op
	events      int
}

func (m *mockPublisher) PublishConnection(_ context.Context, op realtime.Op, _ *model.Connection) error {
	m.connections = append(m.connections, op)
	return nil
}

func (m *mockPublisher) PublishJob(_ context.Context, op realtime.Op, _ *model.PipelineJob) error {
	m.jobs = append(m.jobs, op)
	return nil
}

func (m *mockPublisher) PublishJobEvent(_ context.Context, _ *model.PipelineEvent) error {
	m.events++
	return nil
}
