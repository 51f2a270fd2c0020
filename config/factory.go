package config

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/opforge/memo-framework/datastore"
	"github.com/opforge/memo-framework/datastore/docstore"
	"github.com/opforge/memo-framework/datastore/fsstore"
	"github.com/opforge/memo-framework/operations"
	"github.com/opforge/memo-framework/pkg/logger"

	// The default driver for the document backend.
	_ "github.com/lib/pq"
)

// NewStore builds the configured store backend. An empty backend selects the
// in-memory store.
func (c *Config) NewStore(lggr logger.Logger) (datastore.Store, error) {
	switch c.Store.Backend {
	case "", BackendMemory:
		return datastore.NewMemoryStore(), nil

	case BackendFilesystem:
		if c.Store.FS.RootDir == "" {
			return nil, errors.New("filesystem store requires store.fs.root_dir")
		}

		return fsstore.New(c.Store.FS.RootDir, fsstore.WithLogger(lggr))

	case BackendDocument:
		if c.Store.Doc.DSN == "" {
			return nil, errors.New("document store requires store.doc.dsn")
		}
		driver := c.Store.Doc.Driver
		if driver == "" {
			driver = "postgres"
		}
		db, err := sql.Open(driver, c.Store.Doc.DSN)
		if err != nil {
			return nil, fmt.Errorf("open document store: %w", err)
		}
		opts := []docstore.Option{docstore.WithLogger(lggr)}
		if c.Store.Doc.Table != "" {
			opts = append(opts, docstore.WithTable(c.Store.Doc.Table))
		}

		return docstore.New(db, opts...), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
}

// NewRunner builds a runner with the configured execution cache capacity.
func (c *Config) NewRunner(lggr logger.Logger) *operations.Runner {
	return operations.NewRunner(
		operations.WithCapacity(c.Runner.CacheCapacity),
		operations.WithLogger(lggr),
	)
}

// NewCache builds a cache over the configured store and runner.
func (c *Config) NewCache(lggr logger.Logger) (*datastore.Cache, error) {
	store, err := c.NewStore(lggr)
	if err != nil {
		return nil, err
	}

	return datastore.NewCache(store,
		datastore.WithRunner(c.NewRunner(lggr)),
		datastore.WithLogger(lggr),
	), nil
}
