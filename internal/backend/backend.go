// Package backend opens the configured storage backend.
package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mesh-intelligence/cypress/internal/postgres"
	"github.com/mesh-intelligence/cypress/internal/sqlite"
	"github.com/mesh-intelligence/cypress/internal/sqlstore"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Backend is an attached gateway that can also move its data to and from
// JSONL files.
type Backend interface {
	types.Backend
	Export(ctx context.Context, dir string) (sqlstore.Counts, error)
	Import(ctx context.Context, dir string) (sqlstore.Counts, error)
}

// Open resolves cfg, constructs the matching backend and attaches it. When
// cfg.Backend is empty the backend is inferred from the DSN scheme.
func Open(cfg types.Config) (Backend, error) {
	cfg, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}

	var b Backend
	switch cfg.Backend {
	case types.BackendSQLite:
		b = sqlite.NewBackend()
	case types.BackendPostgres:
		b = postgres.NewBackend()
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, cfg.Backend)
	}
	if err := b.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attaching %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}

// Resolve fills cfg.Backend from the DSN scheme when it is empty, maps
// file and sqlite DSNs onto DataDir, and validates the result.
func Resolve(cfg types.Config) (types.Config, error) {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.DSN = strings.TrimSpace(cfg.DSN)

	if cfg.Backend == "" && cfg.DSN != "" {
		scheme, path, err := parseDSN(cfg.DSN)
		if err != nil {
			return cfg, err
		}
		switch scheme {
		case "postgres", "postgresql":
			cfg.Backend = types.BackendPostgres
		case "sqlite", "file":
			cfg.Backend = types.BackendSQLite
			if path != "" {
				cfg.DataDir = path
			}
			cfg.DSN = ""
		default:
			return cfg, fmt.Errorf("%w: dsn scheme %q", types.ErrBackendUnknown, scheme)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseDSN(dsn string) (scheme, path string, err error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", "", fmt.Errorf("parsing dsn: %w", err)
	}
	path = u.Path
	if u.Opaque != "" {
		path = u.Opaque
	}
	if u.Host != "" {
		path = u.Host + path
	}
	return strings.ToLower(u.Scheme), path, nil
}
