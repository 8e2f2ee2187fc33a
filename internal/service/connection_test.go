package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/conduithq/conduit/common/id"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/service"
	"github.com/conduithq/conduit/internal/store"
)

var _ = Describe("ConnectionService", func() {
	var (
		svc         service.ConnectionService
		connectors  *mockConnectorStore
		connections *mockConnectionStore
		revoker     *mockRevoker
		publisher   *mockPublisher
		ctx         context.Context
	)

	const userID = int64(7)

	apiKeyConnector := &model.Connector{
		ID:       3,
		Slug:     "openai",
		Name:     "OpenAI",
		AuthType: model.AuthTypeAPIKey,
		Tools:    []string{"chat_completion"},
	}
	oauthConnector := &model.Connector{
		ID:       4,
		Slug:     "github",
		Name:     "GitHub",
		AuthType: model.AuthTypeOAuth,
	}

	BeforeEach(func() {
		ctx = context.Background()
		connectors = &mockConnectorStore{}
		connections = &mockConnectionStore{}
		revoker = &mockRevoker{}
		publisher = &mockPublisher{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		svc = service.NewConnectionService(connectors, connections, revoker, publisher, nil)
	})

	Describe("Connect", func() {
		It("upserts an active connection for an api_key connector", func() {
			connectors.getBySlugFn = func(_ context.Context, slug string) (*model.Connector, error) {
				Expect(slug).To(Equal("openai"))
				return apiKeyConnector, nil
			}
			var captured *model.Connection
			connections.upsertFn = func(_ context.Context, conn *model.Connection) error {
				captured = conn
				return nil
			}

			connection, err := svc.Connect(ctx, userID, "openai", "secret-ref-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(connection.Status).To(Equal(model.ConnectionStatusActive))
			Expect(connection.ConnectorID).To(Equal(int64(3)))
			Expect(connection.SecretRef).NotTo(BeNil())
			Expect(*connection.SecretRef).To(Equal("secret-ref-1"))

			Expect(captured).NotTo(BeNil())
			Expect(publisher.connections).To(Equal([]realtime.Op{realtime.OpInsert}))
		})

		It("rejects oauth connectors", func() {
			connectors.getBySlugFn = func(_ context.Context, _ string) (*model.Connector, error) {
				return oauthConnector, nil
			}

			_, err := svc.Connect(ctx, userID, "github", "secret")
			Expect(err).To(MatchError(service.ErrOAuthRequired))
			Expect(connections.upsertCalls).To(BeZero())
			Expect(publisher.connections).To(BeEmpty())
		})

		It("returns ErrUnknownConnector for an unknown slug", func() {
			_, err := svc.Connect(ctx, userID, "nope", "secret")
			Expect(err).To(MatchError(service.ErrUnknownConnector))
		})

		It("does not publish when the upsert fails", func() {
			connectors.getBySlugFn = func(_ context.Context, _ string) (*model.Connector, error) {
				return apiKeyConnector, nil
			}
			connections.upsertFn = func(_ context.Context, _ *model.Connection) error {
				return errors.New("db down")
			}

			_, err := svc.Connect(ctx, userID, "openai", "secret")
			Expect(err).To(HaveOccurred())
			Expect(publisher.connections).To(BeEmpty())
		})
	})

	Describe("Disconnect", func() {
		It("delegates revocation", func() {
			var gotUser, gotConn int64
			revoker.disconnectFn = func(_ context.Context, revokeUserID, connectionID int64) error {
				gotUser, gotConn = revokeUserID, connectionID
				return nil
			}

			Expect(svc.Disconnect(ctx, userID, 42)).To(Succeed())
			Expect(gotUser).To(Equal(userID))
			Expect(gotConn).To(Equal(int64(42)))
		})
	})

	Describe("GetBySlug", func() {
		It("returns nil, nil for an unknown slug", func() {
			detail, err := svc.GetBySlug(ctx, userID, "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(detail).To(BeNil())
		})

		It("joins the connector with the caller's connection and tools", func() {
			connectors.getBySlugFn = func(_ context.Context, _ string) (*model.Connector, error) {
				return apiKeyConnector, nil
			}
			connections.getActiveFn = func(_ context.Context, gotUserID, connectorID int64) (*model.Connection, error) {
				Expect(gotUserID).To(Equal(userID))
				Expect(connectorID).To(Equal(int64(3)))
				return &model.Connection{ID: 9, UserID: userID, ConnectorID: 3, Status: model.ConnectionStatusActive}, nil
			}

			detail, err := svc.GetBySlug(ctx, userID, "openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Connector.Slug).To(Equal("openai"))
			Expect(detail.Connection).NotTo(BeNil())
			Expect(detail.Connection.ID).To(Equal(int64(9)))
			Expect(detail.Tools).To(Equal([]string{"chat_completion"}))
		})

		It("leaves the connection nil when the user has none", func() {
			connectors.getBySlugFn = func(_ context.Context, _ string) (*model.Connector, error) {
				return apiKeyConnector, nil
			}
			connections.getActiveFn = func(_ context.Context, _, _ int64) (*model.Connection, error) {
				return nil, store.ErrNotFound
			}

			detail, err := svc.GetBySlug(ctx, userID, "openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(detail).NotTo(BeNil())
			Expect(detail.Connection).To(BeNil())
		})
	})
})
