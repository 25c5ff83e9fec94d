// Package sqlstore implements the persistence gateway over database/sql.
// The SQLite and Postgres backends share it and differ only in how they
// open the connection and in placeholder style.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	Name string
	// Numbered switches ? placeholders to $1, $2, ... before execution.
	Numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", Numbered: true}
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a types.Gateway over a bound *sql.DB. Until Bind is called, and
// after Unbind, every operation returns types.ErrBackendDetached.
type Store struct {
	dialect Dialect
	timeout time.Duration

	mu sync.RWMutex
	db *sql.DB
}

// New returns an unbound store. A positive timeout bounds each operation.
func New(d Dialect, timeout time.Duration) *Store {
	return &Store{dialect: d, timeout: timeout}
}

// Bind attaches db to the store.
func (s *Store) Bind(db *sql.DB) {
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
}

// Unbind detaches and returns the current db, or nil if none was bound.
func (s *Store) Unbind() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.db
	s.db = nil
	return db
}

// Bound reports whether a db is attached.
func (s *Store) Bound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *Store) conn(ctx context.Context) (*sql.DB, context.Context, context.CancelFunc, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return nil, nil, nil, types.ErrBackendDetached
	}
	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		return db, ctx, cancel, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	return db, ctx, cancel, nil
}

// q rewrites a query written with ? placeholders for the store's dialect.
func (s *Store) q(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate creates every table and index that does not yet exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range append(schemaDDL, indexDDL...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

func checkID(id string) error {
	if !types.ValidID(id) {
		return fmt.Errorf("%w: %q", types.ErrInvalidID, id)
	}
	return nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", ns.String, err)
	}
	return &t, nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func ptrTime(t time.Time) *time.Time { return &t }

// now stamps rows created without a timestamp.
var now = func() time.Time { return time.Now().UTC() }

// exists reports whether a row matching the query is present.
func (s *Store) exists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, s.q(query), args...).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
