// Package catalog loads the connector catalog from its YAML definition
// and seeds the connectors table at boot. Catalog administration
// happens outside this service; the file is the interchange format.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/conduithq/conduit/common"
	"github.com/conduithq/conduit/common/id"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/store"
	"gopkg.in/yaml.v3"
)

type connectorSpec struct {
	Slug         string   `yaml:"slug"`
	Name         string   `yaml:"name"`
	AuthType     string   `yaml:"auth_type"`
	AuthorizeURL string   `yaml:"authorize_url,omitempty"`
	TokenURL     string   `yaml:"token_url,omitempty"`
	RevokeURL    string   `yaml:"revoke_url,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
	EndpointURL  string   `yaml:"endpoint_url,omitempty"`
	Tools        []string `yaml:"tools,omitempty"`
}

type file struct {
	Connectors []connectorSpec `yaml:"connectors"`
}

// Load parses the catalog file into connector models.
func Load(path string) ([]model.Connector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var parsed file
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	connectors := make([]model.Connector, 0, len(parsed.Connectors))
	for _, spec := range parsed.Connectors {
		connector, err := toModel(spec)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, connector)
	}
	return connectors, nil
}

func toModel(spec connectorSpec) (model.Connector, error) {
	slug, err := common.Slugify(spec.Slug, spec.Name)
	if err != nil {
		return model.Connector{}, fmt.Errorf("connector %q: %w", spec.Name, err)
	}

	authType := model.AuthType(spec.AuthType)
	switch authType {
	case model.AuthTypeOAuth, model.AuthTypeAPIKey, model.AuthTypeNone:
	default:
		return model.Connector{}, fmt.Errorf("connector %q: unknown auth_type %q", slug, spec.AuthType)
	}
	if authType == model.AuthTypeOAuth && (spec.AuthorizeURL == "" || spec.TokenURL == "") {
		return model.Connector{}, fmt.Errorf("connector %q: oauth connectors need authorize_url and token_url", slug)
	}

	connector := model.Connector{
		Slug:     slug,
		Name:     spec.Name,
		AuthType: authType,
		Scopes:   spec.Scopes,
		Tools:    spec.Tools,
	}
	connector.AuthorizeURL = optional(spec.AuthorizeURL)
	connector.TokenURL = optional(spec.TokenURL)
	connector.RevokeURL = optional(spec.RevokeURL)
	connector.EndpointURL = optional(spec.EndpointURL)
	return connector, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Seed upserts the loaded catalog into the connectors table. Existing
// rows keep their ids; new connectors get fresh snowflake ids.
func Seed(ctx context.Context, connectors []model.Connector, connectorStore store.ConnectorStore, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	for i := range connectors {
		connector := &connectors[i]
		existing, err := connectorStore.GetBySlug(ctx, connector.Slug)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("looking up connector %q: %w", connector.Slug, err)
		}
		if existing != nil {
			connector.ID = existing.ID
		} else {
			connector.ID = id.New()
		}
		if err := connectorStore.Upsert(ctx, connector); err != nil {
			return err
		}
	}

	log.InfoContext(ctx, "connector catalog seeded", "connectors", len(connectors))
	return nil
}
