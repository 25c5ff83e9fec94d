package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

func columnList(alias string, cols []string) string {
	if alias == "" {
		return strings.Join(cols, ", ")
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(r rowScanner) (types.Workspace, error) {
	var (
		w       types.Workspace
		logo    sql.NullString
		created sql.NullString
	)
	if err := r.Scan(&w.ID, &w.Title, &w.WorkspaceOwner, &w.IconID, &logo, &w.BannerURL, &created, &w.InTrash, &w.Data); err != nil {
		return types.Workspace{}, err
	}
	w.Logo = stringPtr(logo)
	t, err := parseTime(created)
	if err != nil {
		return types.Workspace{}, err
	}
	w.CreatedAt = t
	return w, nil
}

func (s *Store) queryWorkspaces(ctx context.Context, query string, args ...any) ([]types.Workspace, error) {
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.Workspace{}
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetPrivateWorkspaces returns workspaces owned by userID that nobody else
// collaborates on.
func (s *Store) GetPrivateWorkspaces(ctx context.Context, userID string) ([]types.Workspace, error) {
	if err := checkID(userID); err != nil {
		return nil, err
	}
	ws, err := s.queryWorkspaces(ctx, `SELECT `+columnList("", workspaceColumns)+` FROM workspaces w
WHERE w.workspace_owner = ?
  AND NOT EXISTS (SELECT 1 FROM collaborators c WHERE c.workspace_id = w.id)`+orderCreated, userID)
	if err != nil {
		return nil, fmt.Errorf("querying private workspaces: %w", err)
	}
	return ws, nil
}

// GetSharedWorkspaces returns workspaces owned by userID with at least one
// collaborator. EXISTS lists each workspace once however many
// collaborators it has.
func (s *Store) GetSharedWorkspaces(ctx context.Context, userID string) ([]types.Workspace, error) {
	if err := checkID(userID); err != nil {
		return nil, err
	}
	ws, err := s.queryWorkspaces(ctx, `SELECT `+columnList("", workspaceColumns)+` FROM workspaces w
WHERE w.workspace_owner = ?
  AND EXISTS (SELECT 1 FROM collaborators c WHERE c.workspace_id = w.id)`+orderCreated, userID)
	if err != nil {
		return nil, fmt.Errorf("querying shared workspaces: %w", err)
	}
	return ws, nil
}

// GetCollaboratingWorkspaces returns workspaces owned by someone else that
// list userID as a collaborator.
func (s *Store) GetCollaboratingWorkspaces(ctx context.Context, userID string) ([]types.Workspace, error) {
	if err := checkID(userID); err != nil {
		return nil, err
	}
	ws, err := s.queryWorkspaces(ctx, `SELECT `+columnList("", workspaceColumns)+` FROM workspaces w
WHERE w.workspace_owner <> ?
  AND EXISTS (SELECT 1 FROM collaborators c WHERE c.workspace_id = w.id AND c.user_id = ?)`+orderCreated, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying collaborating workspaces: %w", err)
	}
	return ws, nil
}

func (s *Store) GetWorkspace(ctx context.Context, workspaceID string) (*types.Workspace, error) {
	if err := checkID(workspaceID); err != nil {
		return nil, err
	}
	ws, err := s.queryWorkspaces(ctx, `SELECT `+columnList("", workspaceColumns)+` FROM workspaces WHERE id = ?`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying workspace: %w", err)
	}
	if len(ws) == 0 {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, types.ErrNotFound)
	}
	return &ws[0], nil
}

// GetFirstOwnedWorkspace returns the oldest workspace owned by userID, or nil
// when there is none.
func (s *Store) GetFirstOwnedWorkspace(ctx context.Context, userID string) (*types.Workspace, error) {
	if err := checkID(userID); err != nil {
		return nil, err
	}
	ws, err := s.queryWorkspaces(ctx, `SELECT `+columnList("", workspaceColumns)+` FROM workspaces
WHERE workspace_owner = ?`+orderCreated+` LIMIT 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying first workspace: %w", err)
	}
	if len(ws) == 0 {
		return nil, nil
	}
	return &ws[0], nil
}

func (s *Store) CreateWorkspace(ctx context.Context, w types.Workspace) error {
	if err := checkID(w.ID); err != nil {
		return err
	}
	if err := checkID(w.WorkspaceOwner); err != nil {
		return fmt.Errorf("workspace owner: %w", err)
	}
	if strings.TrimSpace(w.Title) == "" {
		return types.ErrInvalidName
	}
	if w.CreatedAt == nil {
		t := now()
		w.CreatedAt = &t
	}

	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	dup, err := s.exists(ctx, tx, `SELECT 1 FROM workspaces WHERE id = ?`, w.ID)
	if err != nil {
		return fmt.Errorf("checking workspace: %w", err)
	}
	if dup {
		return fmt.Errorf("workspace %s: %w", w.ID, types.ErrDuplicate)
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO workspaces (`+columnList("", workspaceColumns)+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		w.ID, w.Title, w.WorkspaceOwner, w.IconID, nullString(w.Logo), w.BannerURL, formatTime(w.CreatedAt), w.InTrash, w.Data)
	if err != nil {
		return fmt.Errorf("inserting workspace: %w", err)
	}
	return tx.Commit()
}

// UpdateWorkspace writes the non-nil fields of patch. An empty patch only
// checks that the workspace exists.
func (s *Store) UpdateWorkspace(ctx context.Context, workspaceID string, patch types.WorkspacePatch) error {
	if err := checkID(workspaceID); err != nil {
		return err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return types.ErrInvalidName
	}
	sets := []assignment{
		{"title", patch.Title},
		{"icon_id", patch.IconID},
		{"logo", patch.Logo},
		{"banner_url", patch.BannerURL},
		{"in_trash", patch.InTrash},
		{"data", patch.Data},
	}
	return s.update(ctx, "workspaces", workspaceID, sets)
}

// DeleteWorkspace removes the workspace with its folders, files and
// collaborator links. Deleting a missing workspace succeeds.
func (s *Store) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	if err := checkID(workspaceID); err != nil {
		return err
	}
	return s.deleteCascade(ctx, []cascadeStep{
		{"DELETE FROM files WHERE workspace_id = ?", workspaceID},
		{"DELETE FROM folders WHERE workspace_id = ?", workspaceID},
		{"DELETE FROM collaborators WHERE workspace_id = ?", workspaceID},
		{"DELETE FROM workspaces WHERE id = ?", workspaceID},
	})
}

type assignment struct {
	column string
	value  *string
}

// update applies the non-nil assignments to the row with the given id and
// returns ErrNotFound when no such row exists.
func (s *Store) update(ctx context.Context, table, id string, sets []assignment) error {
	var (
		clauses []string
		args    []any
	)
	for _, a := range sets {
		if a.value == nil {
			continue
		}
		clauses = append(clauses, a.column+" = ?")
		args = append(args, *a.value)
	}

	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if len(clauses) == 0 {
		found, err := s.exists(ctx, db, "SELECT 1 FROM "+table+" WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("checking %s: %w", table, err)
		}
		if !found {
			return fmt.Errorf("%s %s: %w", table, id, types.ErrNotFound)
		}
		return nil
	}

	args = append(args, id)
	res, err := db.ExecContext(ctx, s.q("UPDATE "+table+" SET "+strings.Join(clauses, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return fmt.Errorf("updating %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, types.ErrNotFound)
	}
	return nil
}

type cascadeStep struct {
	query string
	arg   string
}

func (s *Store) deleteCascade(ctx context.Context, steps []cascadeStep) error {
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, s.q(step.query), step.arg); err != nil {
			return fmt.Errorf("deleting: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
