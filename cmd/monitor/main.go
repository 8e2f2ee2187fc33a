package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/common/otel"
	"github.com/conduithq/conduit/core/config"
	"github.com/conduithq/conduit/core/db"
	"github.com/conduithq/conduit/internal/health"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/notify"
	"github.com/conduithq/conduit/internal/rpc"
	"github.com/conduithq/conduit/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeMonitor)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "health monitor starting",
		"env", cfg.Env,
		"interval", cfg.Monitor.Interval)

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	stores := store.NewStores(database)

	functionsClient := rpc.NewClient(rpc.Config{
		BaseURL: cfg.Functions.BaseURL,
		APIKey:  cfg.Functions.APIKey,
		Timeout: cfg.Functions.Timeout,
	})

	dispatcher := notify.NewDispatcher(functionsClient, stores.Preferences(), slog.Default())

	monitor := health.NewMonitor(
		&functionsProber{client: functionsClient},
		&dispatcherNotifier{dispatcher: dispatcher},
		cfg.Monitor.Interval,
		slog.Default(),
	)

	runCtx, cancel := context.WithCancel(ctx)

	done := make(chan struct{})
	go func() {
		monitor.Run(runCtx)
		close(done)
	}()

	go sweepExpiredSessions(runCtx, stores.Sessions())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down monitor...")
	cancel()
	<-done

	if telemetry != nil {
		if err := telemetry.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "monitor shutdown complete")
}

// sweepExpiredSessions deletes expired session rows once an hour. The
// monitor owns the sweep so the API server never pays for it.
func sweepExpiredSessions(ctx context.Context, sessions store.SessionStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				slog.ErrorContext(ctx, "session sweep failed", "error", err)
			}
		}
	}
}

// functionsProber runs one batched probe over every configured
// connector via the health-probe function.
type functionsProber struct {
	client *rpc.Client
}

func (p *functionsProber) Probe(ctx context.Context) ([]model.HealthResult, error) {
	resp, err := p.client.ProbeHealth(ctx, 0)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// dispatcherNotifier adapts the dispatcher to the monitor's notifier
// contract; the per-recipient outcome is already logged downstream.
type dispatcherNotifier struct {
	dispatcher *notify.Dispatcher
}

func (n *dispatcherNotifier) SendHealthAlerts(ctx context.Context, results []model.HealthResult) error {
	_, err := n.dispatcher.SendHealthAlerts(ctx, results)
	return err
}

const banner = `
 ██████╗ ██████╗ ███╗   ██╗██████╗ ██╗   ██╗██╗████████╗
██╔════╝██╔═══██╗████╗  ██║██╔══██╗██║   ██║██║╚══██╔══╝
██║     ██║   ██║██╔██╗ ██║██║  ██║██║   ██║██║   ██║
██║     ██║   ██║██║╚██╗██║██║  ██║██║   ██║██║   ██║
╚██████╗╚██████╔╝██║ ╚████║██████╔╝╚██████╔╝██║   ██║
 ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝   ╚═╝
                                        health monitor
`
