package model

import "time"

// HealthStatus represents the observed health of a connector endpoint
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

type HealthResult struct {
	CheckedAt     time.Time    `json:"checked_at"`
	ConnectorSlug string       `json:"connector_slug"`
	ConnectorName string       `json:"connector_name"`
	Status        HealthStatus `json:"status"`
	Error         *string      `json:"error,omitempty"`
	LatencyMs     int64        `json:"latency_ms"`
	ConnectorID   int64        `json:"connector_id"`
}
