// Package backend opens the quad store selected by configuration.
package backend

import (
	"github.com/aleksaelezovic/trigoql/internal/config"
	"github.com/aleksaelezovic/trigoql/internal/encoding"
	"github.com/aleksaelezovic/trigoql/internal/logging"
	"github.com/aleksaelezovic/trigoql/internal/sqlstore"
	"github.com/aleksaelezovic/trigoql/internal/storage"
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// Store is what the command line needs from a backend: pattern matching
// for queries plus bulk writes.
type Store interface {
	executor.TripleStoreAdapter
	InsertQuadsBatch(quads []*rdf.Quad) error
	Count() (int64, error)
	Close() error
}

var (
	_ Store = (*store.TripleStore)(nil)
	_ Store = (*sqlstore.Store)(nil)
	_ Store = (*store.MemoryStore)(nil)
)

// Open opens the configured backend.
func Open(cfg config.StorageConfig) (Store, error) {
	log := logging.Component("backend").WithField("backend", cfg.Backend)

	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case config.BackendBadger:
		var st *storage.BadgerStorage
		st, err = storage.Open(storage.Options{Path: cfg.Path, Logger: logging.Component("badger")})
		if err == nil {
			s = store.NewTripleStore(st, encoding.NewTermEncoder(), encoding.NewTermDecoder())
		}
	case config.BackendSQLite:
		s, err = sqlstore.Open(cfg.Path)
	case config.BackendMemory:
		s = store.NewMemoryStore()
	default:
		return nil, sperrors.Errorf(sperrors.CodeStoreBackendUnsupported, "unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.WithField("path", cfg.Path).Info("store opened")
	return s, nil
}
