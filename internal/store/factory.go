package store

import (
	"github.com/conduithq/conduit/core/db"
)

type Stores struct {
	db *db.DB
}

func NewStores(database *db.DB) *Stores {
	return &Stores{db: database}
}

func (s *Stores) Connectors() ConnectorStore {
	return newConnectorStore(s.db)
}

func (s *Stores) Connections() ConnectionStore {
	return newConnectionStore(s.db)
}

func (s *Stores) Transactions() TransactionStore {
	return newTransactionStore(s.db)
}

func (s *Stores) Jobs() JobStore {
	return newJobStore(s.db)
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.db)
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.db)
}

func (s *Stores) Preferences() PreferenceStore {
	return newPreferenceStore(s.db)
}
