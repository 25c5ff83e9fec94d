// Package postgres implements the Postgres storage backend for Cypress.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/mesh-intelligence/cypress/internal/sqlstore"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

const operationTimeout = 5 * time.Second

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Backend implements types.Backend on a Postgres database reached through
// the DSN in the attach config. Every gateway call runs under its own
// timeout.
type Backend struct {
	*sqlstore.Store

	openDB sqlOpenFunc

	mu       sync.Mutex
	attached bool
	db       *sql.DB
}

// NewBackend creates a detached Postgres backend.
func NewBackend() *Backend {
	return &Backend{
		Store:  sqlstore.New(sqlstore.Postgres, operationTimeout),
		openDB: sql.Open,
	}
}

// Attach connects to config.DSN, verifies the connection and ensures the
// schema exists.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendPostgres {
		return fmt.Errorf("%w: %s is not postgres", types.ErrBackendUnknown, config.Backend)
	}

	db, err := b.openDB("postgres", strings.TrimSpace(config.DSN))
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := sqlstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	b.db = db
	b.attached = true
	b.Store.Bind(db)
	return nil
}

// Detach closes the connection pool. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.Store.Unbind()
	b.attached = false
	db := b.db
	b.db = nil
	if db == nil {
		return nil
	}
	return db.Close()
}
