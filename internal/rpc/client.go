// Package rpc is the typed client for the edge functions this service
// delegates provider interaction to. Every call carries the configured
// timeout; failure envelopes are converted to ErrRemote-wrapped errors
// so callers can branch with errors.Is.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conduithq/conduit/internal/model"
	"github.com/go-resty/resty/v2"
)

// ErrRemote marks a failure reported by the functions layer itself
// (a {success:false} envelope), as opposed to a transport error.
var ErrRemote = errors.New("remote call failed")

type Client struct {
	http *resty.Client
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: c}
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (e envelope) err(op string) error {
	if e.Error != "" {
		return fmt.Errorf("%s: %w: %s", op, ErrRemote, e.Error)
	}
	return fmt.Errorf("%s: %w", op, ErrRemote)
}

type StartAuthorizationRequest struct {
	ConnectorID int64  `json:"connectorId"`
	UserID      int64  `json:"userId"`
	RedirectURI string `json:"redirectUri"`
}

type StartAuthorizationResponse struct {
	envelope
	AuthorizationURL string `json:"authorizationUrl"`
	State            string `json:"state"`
	CodeVerifier     string `json:"codeVerifier"`
}

func (c *Client) StartAuthorization(ctx context.Context, req StartAuthorizationRequest) (*StartAuthorizationResponse, error) {
	var out StartAuthorizationResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/start-authorization")
	if err != nil {
		return nil, fmt.Errorf("calling start-authorization: %w", err)
	}
	if resp.IsError() || !out.Success {
		return nil, out.err("start-authorization")
	}
	return &out, nil
}

type ExchangeAuthorizationRequest struct {
	Code         string `json:"code"`
	State        string `json:"state"`
	CodeVerifier string `json:"codeVerifier"`
}

type ExchangeAuthorizationResponse struct {
	envelope
	ConnectorID   int64    `json:"connectorId"`
	ConnectorName string   `json:"connectorName"`
	Scopes        []string `json:"scopes"`
}

func (c *Client) ExchangeAuthorization(ctx context.Context, req ExchangeAuthorizationRequest) (*ExchangeAuthorizationResponse, error) {
	var out ExchangeAuthorizationResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/exchange-authorization")
	if err != nil {
		return nil, fmt.Errorf("calling exchange-authorization: %w", err)
	}
	if resp.IsError() || !out.Success {
		return nil, out.err("exchange-authorization")
	}
	return &out, nil
}

type RefreshTokenRequest struct {
	ConnectionID int64 `json:"connectionId"`
	Force        bool  `json:"force"`
}

func (c *Client) RefreshToken(ctx context.Context, req RefreshTokenRequest) error {
	var out envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/refresh-token")
	if err != nil {
		return fmt.Errorf("calling refresh-token: %w", err)
	}
	if resp.IsError() || !out.Success {
		return out.err("refresh-token")
	}
	return nil
}

type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Degraded  int `json:"degraded"`
	Unhealthy int `json:"unhealthy"`
}

type HealthProbeResponse struct {
	envelope
	Summary HealthSummary        `json:"summary"`
	Results []model.HealthResult `json:"results"`
}

func (c *Client) ProbeHealth(ctx context.Context, userID int64) (*HealthProbeResponse, error) {
	var out HealthProbeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]int64{"userId": userID}).
		SetResult(&out).
		SetError(&out).
		Post("/health-probe")
	if err != nil {
		return nil, fmt.Errorf("calling health-probe: %w", err)
	}
	if resp.IsError() || !out.Success {
		return nil, out.err("health-probe")
	}
	return &out, nil
}

type Alert struct {
	ConnectorName  string  `json:"connectorName"`
	ConnectorSlug  string  `json:"connectorSlug"`
	Status         string  `json:"status"`
	Error          *string `json:"error,omitempty"`
	LatencyMs      *int64  `json:"latencyMs,omitempty"`
	Timestamp      string  `json:"timestamp"`
	RecipientEmail *string `json:"recipientEmail,omitempty"`
}

type DispatchAlertsResponse struct {
	Sent    int              `json:"sent"`
	Results []map[string]any `json:"results,omitempty"`
}

func (c *Client) DispatchAlerts(ctx context.Context, alerts []Alert) (*DispatchAlertsResponse, error) {
	var out DispatchAlertsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(alerts).
		SetResult(&out).
		Post("/dispatch-alert")
	if err != nil {
		return nil, fmt.Errorf("calling dispatch-alert: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("dispatch-alert: %w: status %d", ErrRemote, resp.StatusCode())
	}
	return &out, nil
}
