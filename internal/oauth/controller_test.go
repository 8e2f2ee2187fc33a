package oauth_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/conduithq/conduit/common/id"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/oauth"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/rpc"
	"github.com/conduithq/conduit/internal/store"
	"github.com/conduithq/conduit/internal/txn"
)

var _ = Describe("Controller", func() {
	var (
		ctrl         *oauth.Controller
		client       *mockFunctionsClient
		mailbox      *txn.MemoryStore
		connections  *mockConnectionStore
		transactions *mockTransactionStore
		publisher    *mockPublisher
		ctx          context.Context
	)

	const (
		userID    = int64(7)
		sessionID = "sess-1"
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockFunctionsClient{}
		mailbox = txn.NewMemoryStore(time.Minute)
		connections = &mockConnectionStore{}
		transactions = &mockTransactionStore{}
		publisher = &mockPublisher{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		ctrl = oauth.NewController(client, mailbox, connections, transactions, publisher, nil)
	})

	Describe("Start", func() {
		It("stores the nonce and verifier and returns the authorization URL", func() {
			client.startFn = func(_ context.Context, req rpc.StartAuthorizationRequest) (*rpc.StartAuthorizationResponse, error) {
				Expect(req.ConnectorID).To(Equal(int64(3)))
				Expect(req.UserID).To(Equal(userID))
				return &rpc.StartAuthorizationResponse{
					AuthorizationURL: "https://github.com/login/oauth/authorize?state=S",
					State:            "nonce-S",
					CodeVerifier:     "verifier-V",
				}, nil
			}

			result, err := ctrl.Start(ctx, userID, sessionID, 3, "https://app.example.com/callback")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.AuthorizationURL).To(Equal("https://github.com/login/oauth/authorize?state=S"))

			pending, err := mailbox.Get(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).NotTo(BeNil())
			Expect(pending.State).To(Equal("nonce-S"))
			Expect(pending.Verifier).To(Equal("verifier-V"))
			Expect(pending.ConnectorID).To(Equal(int64(3)))
		})

		It("records a started audit row with the verifier hash, not the verifier", func() {
			_, err := ctrl.Start(ctx, userID, sessionID, 3, "https://app.example.com/callback")
			Expect(err).NotTo(HaveOccurred())

			Expect(transactions.created).To(HaveLen(1))
			audit := transactions.created[0]
			Expect(audit.Status).To(Equal(model.TransactionStatusStarted))
			Expect(audit.VerifierHash).To(HaveLen(64))
			Expect(audit.VerifierHash).NotTo(Equal("verifier-default"))
		})

		It("supersedes a pending transaction instead of queueing", func() {
			states := []string{"nonce-first", "nonce-second"}
			client.startFn = func(_ context.Context, _ rpc.StartAuthorizationRequest) (*rpc.StartAuthorizationResponse, error) {
				state := states[0]
				states = states[1:]
				return &rpc.StartAuthorizationResponse{
					AuthorizationURL: "https://provider.example.com/authorize",
					State:            state,
					CodeVerifier:     "verifier-" + state,
				}, nil
			}

			_, err := ctrl.Start(ctx, userID, sessionID, 3, "https://app.example.com/callback")
			Expect(err).NotTo(HaveOccurred())
			_, err = ctrl.Start(ctx, userID, sessionID, 4, "https://app.example.com/callback")
			Expect(err).NotTo(HaveOccurred())

			pending, err := mailbox.Get(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending.State).To(Equal("nonce-second"))
			Expect(pending.ConnectorID).To(Equal(int64(4)))

			// A callback for the superseded transaction must now fail
			// the state check and touch nothing.
			_, err = ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{Code: "abc", State: "nonce-first"})
			Expect(err).To(MatchError(oauth.ErrStateMismatch))
			Expect(client.exchangeCalls).To(BeZero())
			Expect(connections.upsertCalls).To(BeZero())
		})

		It("does not write the mailbox when the start RPC fails", func() {
			client.startFn = func(_ context.Context, _ rpc.StartAuthorizationRequest) (*rpc.StartAuthorizationResponse, error) {
				return nil, errors.New("functions unreachable")
			}

			_, err := ctrl.Start(ctx, userID, sessionID, 3, "https://app.example.com/callback")
			Expect(err).To(HaveOccurred())

			pending, err := mailbox.Get(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeNil())
		})
	})

	Describe("HandleCallback", func() {
		startFlow := func(state, verifier string) {
			client.startFn = func(_ context.Context, _ rpc.StartAuthorizationRequest) (*rpc.StartAuthorizationResponse, error) {
				return &rpc.StartAuthorizationResponse{
					AuthorizationURL: "https://provider.example.com/authorize",
					State:            state,
					CodeVerifier:     verifier,
				}, nil
			}
			_, err := ctrl.Start(ctx, userID, sessionID, 3, "https://app.example.com/callback")
			Expect(err).NotTo(HaveOccurred())
		}

		expectMailboxEmpty := func() {
			pending, err := mailbox.Get(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeNil())
		}

		It("returns ErrNotCallback when no state parameter is present", func() {
			result, err := ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{})
			Expect(err).To(MatchError(oauth.ErrNotCallback))
			Expect(result).To(BeNil())
		})

		It("completes the flow and activates the connection on a matching callback", func() {
			startFlow("nonce-S", "verifier-V")

			client.exchangeFn = func(_ context.Context, req rpc.ExchangeAuthorizationRequest) (*rpc.ExchangeAuthorizationResponse, error) {
				Expect(req.Code).To(Equal("abc"))
				Expect(req.State).To(Equal("nonce-S"))
				Expect(req.CodeVerifier).To(Equal("verifier-V"))
				return &rpc.ExchangeAuthorizationResponse{
					ConnectorID:   3,
					ConnectorName: "GitHub",
					Scopes:        []string{"repo"},
				}, nil
			}

			result, err := ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{Code: "abc", State: "nonce-S"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ConnectorName).To(Equal("GitHub"))
			Expect(result.Connection.Status).To(Equal(model.ConnectionStatusActive))
			Expect(result.Connection.UserID).To(Equal(userID))
			Expect(result.Connection.Scopes).To(Equal([]string{"repo"}))

			expectMailboxEmpty()
			Expect(transactions.completed).To(HaveLen(1))
			Expect(publisher.published).To(HaveLen(1))
			Expect(publisher.published[0].op).To(Equal(realtime.OpInsert))
		})

		It("rejects a mismatched state without side effects and clears the mailbox", func() {
			startFlow("nonce-S", "verifier-V")

			result, err := ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{Code: "abc", State: "WRONG"})
			Expect(err).To(MatchError(oauth.ErrStateMismatch))
			Expect(result).To(BeNil())

			Expect(client.exchangeCalls).To(BeZero())
			Expect(connections.upsertCalls).To(BeZero())
			Expect(publisher.published).To(BeEmpty())
			expectMailboxEmpty()
		})

		It("is replay-safe: the same callback cannot complete twice", func() {
			startFlow("nonce-S", "verifier-V")

			_, err := ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{Code: "abc", State: "nonce-S"})
			Expect(err).NotTo(HaveOccurred())

			_, err = ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{Code: "abc", State: "nonce-S"})
			Expect(err).To(MatchError(oauth.ErrTransactionExpired))
			Expect(client.exchangeCalls).To(Equal(1))
		})

		It("returns ErrTransactionExpired when nothing is pending", func() {
			_, err := ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{Code: "abc", State: "nonce-S"})
			Expect(err).To(MatchError(oauth.ErrTransactionExpired))
			Expect(client.exchangeCalls).To(BeZero())
		})

		It("surfaces a provider error without attempting the exchange", func() {
			startFlow("nonce-S", "verifier-V")

			_, err := ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{
				State:            "nonce-S",
				ErrorParam:       "access_denied",
				ErrorDescription: "user cancelled the authorization",
			})
			Expect(err).To(MatchError(oauth.ErrProviderDenied))
			Expect(err.Error()).To(ContainSubstring("user cancelled"))

			Expect(client.exchangeCalls).To(BeZero())
			Expect(transactions.failed).To(HaveLen(1))
			expectMailboxEmpty()
		})

		It("clears the mailbox and fails the audit row when the exchange is rejected", func() {
			startFlow("nonce-S", "verifier-V")

			client.exchangeFn = func(_ context.Context, _ rpc.ExchangeAuthorizationRequest) (*rpc.ExchangeAuthorizationResponse, error) {
				return nil, errors.New("token endpoint rejected the code")
			}

			_, err := ctrl.HandleCallback(ctx, userID, sessionID, oauth.Callback{Code: "abc", State: "nonce-S"})
			Expect(err).To(MatchError(oauth.ErrExchangeFailed))

			Expect(connections.upsertCalls).To(BeZero())
			Expect(transactions.failed).To(HaveLen(1))
			expectMailboxEmpty()
		})
	})

	Describe("Refresh", func() {
		BeforeEach(func() {
			connections.getByIDFn = func(_ context.Context, connID int64) (*model.Connection, error) {
				return &model.Connection{ID: connID, UserID: userID, ConnectorID: 3, Status: model.ConnectionStatusActive}, nil
			}
		})

		It("forwards the refresh to the functions layer", func() {
			var captured rpc.RefreshTokenRequest
			client.refreshFn = func(_ context.Context, req rpc.RefreshTokenRequest) error {
				captured = req
				return nil
			}

			Expect(ctrl.Refresh(ctx, userID, 42, true)).To(Succeed())
			Expect(captured.ConnectionID).To(Equal(int64(42)))
			Expect(captured.Force).To(BeTrue())
		})

		It("refuses to refresh another user's connection", func() {
			connections.getByIDFn = func(_ context.Context, connID int64) (*model.Connection, error) {
				return &model.Connection{ID: connID, UserID: userID + 1, Status: model.ConnectionStatusActive}, nil
			}

			err := ctrl.Refresh(ctx, userID, 42, false)
			Expect(err).To(MatchError(store.ErrNotFound))
			Expect(client.refreshCalls).To(BeZero())
		})

		It("returns the failure without mutating anything locally", func() {
			client.refreshFn = func(_ context.Context, _ rpc.RefreshTokenRequest) error {
				return errors.New("refresh rejected")
			}

			err := ctrl.Refresh(ctx, userID, 42, false)
			Expect(err).To(HaveOccurred())
			Expect(connections.upsertCalls).To(BeZero())
			Expect(publisher.published).To(BeEmpty())
		})
	})

	Describe("Disconnect", func() {
		BeforeEach(func() {
			connections.getByIDFn = func(_ context.Context, connID int64) (*model.Connection, error) {
				return &model.Connection{ID: connID, UserID: userID, ConnectorID: 3, Status: model.ConnectionStatusActive}, nil
			}
		})

		It("revokes the connection and publishes the change", func() {
			var revokedID int64
			connections.updateStatusFn = func(_ context.Context, connID int64, status model.ConnectionStatus, _ *string) error {
				revokedID = connID
				Expect(status).To(Equal(model.ConnectionStatusRevoked))
				return nil
			}

			Expect(ctrl.Disconnect(ctx, userID, 42)).To(Succeed())
			Expect(revokedID).To(Equal(int64(42)))
			Expect(publisher.published).To(HaveLen(1))
			Expect(publisher.published[0].op).To(Equal(realtime.OpDelete))
		})

		It("refuses to revoke another user's connection", func() {
			connections.getByIDFn = func(_ context.Context, connID int64) (*model.Connection, error) {
				return &model.Connection{ID: connID, UserID: userID + 1, Status: model.ConnectionStatusActive}, nil
			}

			err := ctrl.Disconnect(ctx, userID, 42)
			Expect(err).To(MatchError(store.ErrNotFound))
			Expect(publisher.published).To(BeEmpty())
		})

		It("treats a disconnect of an already revoked connection as done", func() {
			connections.getByIDFn = func(_ context.Context, connID int64) (*model.Connection, error) {
				return &model.Connection{ID: connID, UserID: userID, Status: model.ConnectionStatusRevoked}, nil
			}
			var statusUpdates int
			connections.updateStatusFn = func(_ context.Context, _ int64, _ model.ConnectionStatus, _ *string) error {
				statusUpdates++
				return nil
			}

			Expect(ctrl.Disconnect(ctx, userID, 42)).To(Succeed())
			Expect(statusUpdates).To(BeZero())
			Expect(publisher.published).To(BeEmpty())
		})

		It("leaves status untouched when the store update fails", func() {
			connections.updateStatusFn = func(_ context.Context, _ int64, _ model.ConnectionStatus, _ *string) error {
				return errors.New("db down")
			}

			err := ctrl.Disconnect(ctx, userID, 42)
			Expect(err).To(HaveOccurred())
			Expect(publisher.published).To(BeEmpty())
		})
	})
})
