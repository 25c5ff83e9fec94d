// Package sqlite implements the SQLite storage backend for Cypress.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/cypress/internal/sqlstore"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// DBFile is the database file name inside the data directory.
const DBFile = "cypress.db"

const attachTimeout = 10 * time.Second

// Backend implements types.Backend on a SQLite file in the configured
// data directory. The schema is created on first attach; data survives
// detach and reattach.
type Backend struct {
	*sqlstore.Store

	mu       sync.Mutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{Store: sqlstore.New(sqlstore.SQLite, 0)}
}

// Attach opens <DataDir>/cypress.db, creating the directory and schema as
// needed. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendSQLite {
		return fmt.Errorf("%w: %s is not sqlite", types.ErrBackendUnknown, config.Backend)
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(filepath.Join(dataDir, DBFile)))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and keeps pragmas consistent.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), attachTimeout)
	defer cancel()
	if err := sqlstore.Migrate(ctx, db); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.config = config
	b.attached = true
	b.Store.Bind(db)
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrBackendDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.Store.Unbind()
	b.attached = false
	if b.db != nil {
		db := b.db
		b.db = nil
		if err := db.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}

// Path returns the database file of the attached backend, or "" when
// detached.
func (b *Backend) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return ""
	}
	dir := b.config.DataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, DBFile)
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
