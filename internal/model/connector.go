package model

import "time"

// AuthType represents how a connector authenticates
type AuthType string

const (
	AuthTypeOAuth  AuthType = "oauth"
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeNone   AuthType = "none"
)

type Connector struct {
	ID           int64     `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	AuthType     AuthType  `json:"auth_type"`
	AuthorizeURL *string   `json:"authorize_url,omitempty"`
	TokenURL     *string   `json:"token_url,omitempty"`
	RevokeURL    *string   `json:"revoke_url,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	EndpointURL  *string   `json:"endpoint_url,omitempty"`
	Tools        []string  `json:"tools,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
