package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// jsonlTables maps each table to its JSONL file. Export writes them in this
// order and Import reads them in this order.
var jsonlTables = []struct {
	file    string
	table   string
	columns []string
}{
	{"users.jsonl", "users", userColumns},
	{"workspaces.jsonl", "workspaces", workspaceColumns},
	{"folders.jsonl", "folders", folderColumns},
	{"files.jsonl", "files", fileColumns},
	{"collaborators.jsonl", "collaborators", collaboratorColumns},
	{"subscriptions.jsonl", "subscriptions", subscriptionColumns},
}

// Counts is the number of rows moved per table.
type Counts map[string]int

// Total sums the per-table counts.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Export writes every table to dir as <table>.jsonl, one object per row
// keyed by column name. Each file is replaced atomically.
func (s *Store) Export(ctx context.Context, dir string) (Counts, error) {
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	counts := Counts{}
	for _, m := range jsonlTables {
		records, err := s.dumpTable(ctx, db, m.table, m.columns)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", m.table, err)
		}
		if err := writeJSONL(filepath.Join(dir, m.file), records); err != nil {
			return nil, fmt.Errorf("writing %s: %w", m.file, err)
		}
		counts[m.table] = len(records)
	}
	return counts, nil
}

func (s *Store) dumpTable(ctx context.Context, db *sql.DB, table string, columns []string) ([]json.RawMessage, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+columnList("", columns)+" FROM "+table+" ORDER BY "+columns[0])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	vals := make([]sql.NullString, len(columns))
	ptrs := make([]any, len(columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		obj := make(map[string]any, len(columns))
		for i, col := range columns {
			if vals[i].Valid {
				obj[col] = vals[i].String
			} else {
				obj[col] = nil
			}
		}
		b, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Import loads every <table>.jsonl found in dir inside one transaction.
// Rows whose key already exists are kept as they are, malformed lines are
// skipped, unknown fields are ignored. Missing files count as empty.
func (s *Store) Import(ctx context.Context, dir string) (Counts, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("import dir: %w", err)
	}
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	counts := Counts{}
	for _, m := range jsonlTables {
		records, err := readJSONL(filepath.Join(dir, m.file))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", m.file, err)
		}
		n, err := s.insertRecords(ctx, tx, m.table, m.columns, records)
		if err != nil {
			return nil, fmt.Errorf("loading %s into %s: %w", m.file, m.table, err)
		}
		counts[m.table] = n
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return counts, nil
}

// insertRecords inserts the listed columns of each record and returns how
// many rows were new.
func (s *Store) insertRecords(ctx context.Context, tx *sql.Tx, table string, columns []string, records []json.RawMessage) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, s.q(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		table, columnList("", columns), placeholders,
	)))
	if err != nil {
		return 0, fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}
		args := make([]any, len(columns))
		for i, col := range columns {
			switch v := obj[col].(type) {
			case nil:
				args[i] = nil
			case string:
				args[i] = v
			default:
				b, err := json.Marshal(v)
				if err != nil {
					return 0, err
				}
				args[i] = string(b)
			}
		}
		if !requiredPresent(table, columns, args) {
			continue
		}
		for i, col := range columns {
			if args[i] == nil && !nullableColumns[col] {
				args[i] = ""
			}
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// nullableColumns are stored as NULL when absent; every other column falls
// back to the empty string.
var nullableColumns = map[string]bool{"logo": true, "created_at": true}

// requiredPresent reports whether the NOT NULL columns without defaults have
// values. Records missing them are skipped like malformed lines.
func requiredPresent(table string, columns []string, args []any) bool {
	required := map[string][]string{
		"users":         {"id", "email"},
		"workspaces":    {"id", "title", "workspace_owner"},
		"folders":       {"id", "workspace_id", "title"},
		"files":         {"id", "folder_id", "workspace_id", "title"},
		"collaborators": {"workspace_id", "user_id"},
		"subscriptions": {"id", "user_id", "status"},
	}[table]
	for _, req := range required {
		for i, col := range columns {
			if col == req && args[i] == nil {
				return false
			}
		}
	}
	return true
}
