package service

import (
	"log/slog"

	"github.com/conduithq/conduit/core/config"
	"github.com/conduithq/conduit/internal/store"
)

type Services struct {
	stores    *store.Stores
	revoker   Revoker
	publisher Publisher
	workOSCfg config.WorkOSConfig
	logger    *slog.Logger
}

// Publisher is the union of the publishing surfaces the services need.
type Publisher interface {
	ChangePublisher
	JobPublisher
}

func NewServices(stores *store.Stores, revoker Revoker, publisher Publisher, workOSCfg config.WorkOSConfig, logger *slog.Logger) *Services {
	return &Services{
		stores:    stores,
		revoker:   revoker,
		publisher: publisher,
		workOSCfg: workOSCfg,
		logger:    logger,
	}
}

func (s *Services) Auth() AuthService {
	return NewAuthService(s.stores.Users(), s.stores.Sessions(), s.workOSCfg)
}

func (s *Services) Connections() ConnectionService {
	return NewConnectionService(s.stores.Connectors(), s.stores.Connections(), s.revoker, s.publisher, s.logger)
}

func (s *Services) Jobs() JobService {
	return NewJobService(s.stores.Jobs(), s.stores.Connections(), s.publisher, s.logger)
}

func (s *Services) Preferences() PreferenceService {
	return NewPreferenceService(s.stores.Preferences())
}
