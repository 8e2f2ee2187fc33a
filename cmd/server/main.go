package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conduithq/conduit/common/id"
	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/common/otel"
	"github.com/conduithq/conduit/core/config"
	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/catalog"
	"github.com/conduithq/conduit/internal/http/middleware"
	httprouter "github.com/conduithq/conduit/internal/http/router"
	"github.com/conduithq/conduit/internal/oauth"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/rpc"
	"github.com/conduithq/conduit/internal/service"
	"github.com/conduithq/conduit/internal/store"
	"github.com/conduithq/conduit/internal/txn"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "conduit starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(id.NodeServer); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Realtime.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	stores := store.NewStores(database)

	connectors, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load connector catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	if err := catalog.Seed(ctx, connectors, stores.Connectors(), slog.Default()); err != nil {
		slog.ErrorContext(ctx, "failed to seed connector catalog", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "connector catalog seeded", "connectors", len(connectors))

	streams := realtime.StreamNames{
		Connections: cfg.Realtime.ConnectionsStream,
		Jobs:        cfg.Realtime.JobsStream,
		JobEvents:   cfg.Realtime.JobEventsStream,
	}

	cache := realtime.NewCache()
	publisher := realtime.NewPublisher(redisClient, streams, slog.Default())
	synchronizer := realtime.NewSynchronizer(redisClient, cache, streams, snapshotFunc(stores), slog.Default())
	if err := synchronizer.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to start realtime synchronizer", "error", err)
		os.Exit(1)
	}
	defer synchronizer.Close()
	hub := realtime.NewHub(cache, slog.Default())

	functionsClient := rpc.NewClient(rpc.Config{
		BaseURL: cfg.Functions.BaseURL,
		APIKey:  cfg.Functions.APIKey,
		Timeout: cfg.Functions.Timeout,
	})

	mailbox := txn.NewRedisStore(redisClient, cfg.Realtime.TransactionTTL)
	controller := oauth.NewController(
		functionsClient,
		mailbox,
		stores.Connections(),
		stores.Transactions(),
		publisher,
		slog.Default(),
	)

	services := service.NewServices(stores, controller, publisher, cfg.WorkOS, slog.Default())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, stores, controller, hub)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// SSE connections outlive any sane write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	synchronizer.Close()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, stores *store.Stores, controller *oauth.Controller, hub *realtime.Hub) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, stores, controller, hub, httprouter.RouterConfig{
		DashboardURL:     cfg.DashboardURL,
		OAuthCallbackURL: cfg.OAuthCallbackURL,
		InternalAPIKey:   cfg.InternalAPIKey,
		IsProduction:     cfg.IsProduction(),
	})

	return router
}

// snapshotFunc builds the full-state loader the synchronizer uses at
// startup and on every reconnect.
func snapshotFunc(stores *store.Stores) realtime.SnapshotFunc {
	const (
		snapshotJobs   = 200
		snapshotEvents = 1000
	)

	return func(ctx context.Context) (*realtime.Snapshot, error) {
		connectors, err := stores.Connectors().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading connectors: %w", err)
		}
		connections, err := stores.Connections().ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading connections: %w", err)
		}
		jobs, err := stores.Jobs().ListRecent(ctx, snapshotJobs)
		if err != nil {
			return nil, fmt.Errorf("loading jobs: %w", err)
		}
		events, err := stores.Jobs().ListRecentEvents(ctx, snapshotEvents)
		if err != nil {
			return nil, fmt.Errorf("loading job events: %w", err)
		}

		return &realtime.Snapshot{
			Connectors:  connectors,
			Connections: connections,
			Jobs:        jobs,
			Events:      events,
		}, nil
	}
}

const banner = `
 ██████╗ ██████╗ ███╗   ██╗██████╗ ██╗   ██╗██╗████████╗
██╔════╝██╔═══██╗████╗  ██║██╔══██╗██║   ██║██║╚══██╔══╝
██║     ██║   ██║██╔██╗ ██║██║  ██║██║   ██║██║   ██║
██║     ██║   ██║██║╚██╗██║██║  ██║██║   ██║██║   ██║
╚██████╗╚██████╔╝██║ ╚████║██████╔╝╚██████╔╝██║   ██║
 ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝   ╚═╝
`
