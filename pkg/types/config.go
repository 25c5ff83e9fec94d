package types

import (
	"errors"
	"strings"
)

// Config holds backend selection and parameters for Backend.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDSNRequired    = errors.New("dsn is required for the postgres backend")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendPostgres && strings.TrimSpace(c.DSN) == "" {
		return ErrDSNRequired
	}
	return nil
}
