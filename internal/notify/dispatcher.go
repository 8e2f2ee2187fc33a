// Package notify turns degraded health results into alert deliveries
// through the dispatch-alert function, one batched call per cycle.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/rpc"
	"github.com/conduithq/conduit/internal/store"
)

// AlertClient is the slice of the functions client the dispatcher uses.
type AlertClient interface {
	DispatchAlerts(ctx context.Context, alerts []rpc.Alert) (*rpc.DispatchAlertsResponse, error)
}

type DispatchResult struct {
	Sent   int
	Failed bool
}

type Dispatcher struct {
	client      AlertClient
	preferences store.PreferenceStore
	logger      *slog.Logger
}

func NewDispatcher(client AlertClient, preferences store.PreferenceStore, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{client: client, preferences: preferences, logger: log}
}

// SendHealthAlerts delivers the degraded and unhealthy entries of one
// health cycle. An all-healthy input returns {Sent: 0} without touching
// the network. Delivery failure is reported, never retried here.
func (d *Dispatcher) SendHealthAlerts(ctx context.Context, results []model.HealthResult) (*DispatchResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "conduit.notify.dispatcher"})

	var degraded []model.HealthResult
	for _, result := range results {
		if result.Status == model.HealthStatusDegraded || result.Status == model.HealthStatusUnhealthy {
			degraded = append(degraded, result)
		}
	}
	if len(degraded) == 0 {
		return &DispatchResult{Sent: 0}, nil
	}

	recipients, err := d.recipientEmails(ctx)
	if err != nil {
		// Alerts still go out; the functions layer falls back to its
		// own recipient resolution when no email is attached.
		d.logger.ErrorContext(ctx, "resolving alert recipients failed", "error", err)
	}

	alerts := make([]rpc.Alert, 0, len(degraded)*max(len(recipients), 1))
	for _, result := range degraded {
		alert := rpc.Alert{
			ConnectorName: result.ConnectorName,
			ConnectorSlug: result.ConnectorSlug,
			Status:        string(result.Status),
			Error:         result.Error,
			Timestamp:     result.CheckedAt.UTC().Format(time.RFC3339),
		}
		if result.LatencyMs > 0 {
			latency := result.LatencyMs
			alert.LatencyMs = &latency
		}
		if len(recipients) == 0 {
			alerts = append(alerts, alert)
			continue
		}
		for _, email := range recipients {
			withRecipient := alert
			withRecipient.RecipientEmail = &email
			alerts = append(alerts, withRecipient)
		}
	}

	resp, err := d.client.DispatchAlerts(ctx, alerts)
	if err != nil {
		d.logger.ErrorContext(ctx, "alert dispatch failed", "error", err, "alerts", len(alerts))
		return &DispatchResult{Sent: 0, Failed: true}, fmt.Errorf("dispatching alerts: %w", err)
	}

	d.logger.InfoContext(ctx, "health alerts dispatched", "sent", resp.Sent, "degraded", len(degraded))
	return &DispatchResult{Sent: resp.Sent}, nil
}

func (d *Dispatcher) recipientEmails(ctx context.Context) ([]string, error) {
	prefs, err := d.preferences.ListOptedIn(ctx)
	if err != nil {
		return nil, err
	}
	var emails []string
	for _, pref := range prefs {
		if pref.AlertEmail != nil && *pref.AlertEmail != "" {
			emails = append(emails, *pref.AlertEmail)
		}
	}
	return emails, nil
}
