// Package health polls the batched connector health probe and turns
// status transitions into alerts. Only degradations alert, and only
// when both sides of the transition are known, so a flapping connector
// cannot storm the notifier.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/internal/model"
)

// Prober runs one batched health probe over all configured connectors.
type Prober interface {
	Probe(ctx context.Context) ([]model.HealthResult, error)
}

// Notifier receives the batch of degraded results for one cycle.
type Notifier interface {
	SendHealthAlerts(ctx context.Context, results []model.HealthResult) error
}

type Monitor struct {
	prober   Prober
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger

	// previous status per connector id, from the last successful probe.
	previous map[int64]model.HealthStatus
}

const DefaultInterval = 60 * time.Second

func NewMonitor(prober Prober, notifier Notifier, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		prober:   prober,
		notifier: notifier,
		interval: interval,
		logger:   log,
		previous: make(map[int64]model.HealthStatus),
	}
}

// Run probes once eagerly, then on every tick until the context is
// cancelled. The eager call and the ticker share runOnce.
func (m *Monitor) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "conduit.health.monitor"})

	m.runOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	results, err := m.prober.Probe(ctx)
	if err != nil {
		// Keep the previous result set; one missed poll must not reset
		// every connector to unknown.
		m.logger.ErrorContext(ctx, "health probe failed", "error", err)
		return
	}

	degraded := m.detectDegradations(results)

	if len(degraded) > 0 {
		if err := m.notifier.SendHealthAlerts(ctx, degraded); err != nil {
			m.logger.ErrorContext(ctx, "health alert dispatch failed", "error", err, "count", len(degraded))
		}
	}

	m.logger.DebugContext(ctx, "health cycle complete", "results", len(results), "degradations", len(degraded))
}

// detectDegradations compares each result against the previous cycle
// and returns the entries whose status strictly worsened. It also
// advances the baseline for the next cycle.
func (m *Monitor) detectDegradations(results []model.HealthResult) []model.HealthResult {
	var degraded []model.HealthResult
	for _, result := range results {
		old, seen := m.previous[result.ConnectorID]
		m.previous[result.ConnectorID] = result.Status

		if !seen {
			// First observation, no baseline to compare against.
			continue
		}
		if isDegradation(old, result.Status) {
			degraded = append(degraded, result)
		}
	}
	return degraded
}

// rank orders the known statuses by severity; unknown is unranked and
// never participates in a transition.
func rank(status model.HealthStatus) int {
	switch status {
	case model.HealthStatusHealthy:
		return 0
	case model.HealthStatusDegraded:
		return 1
	case model.HealthStatusUnhealthy:
		return 2
	}
	return -1
}

func isDegradation(old, next model.HealthStatus) bool {
	oldRank, newRank := rank(old), rank(next)
	if oldRank < 0 || newRank < 0 {
		return false
	}
	return newRank > oldRank
}
