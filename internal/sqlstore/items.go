package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

func scanFolder(r rowScanner) (types.Folder, error) {
	var (
		f       types.Folder
		created sql.NullString
	)
	if err := r.Scan(&f.ID, &f.WorkspaceID, &f.Title, &f.IconID, &f.Data, &f.BannerURL, &created, &f.InTrash); err != nil {
		return types.Folder{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return types.Folder{}, err
	}
	f.CreatedAt = t
	return f, nil
}

func scanFile(r rowScanner) (types.File, error) {
	var (
		f       types.File
		created sql.NullString
	)
	if err := r.Scan(&f.ID, &f.FolderID, &f.WorkspaceID, &f.Title, &f.IconID, &f.Data, &f.BannerURL, &created, &f.InTrash); err != nil {
		return types.File{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return types.File{}, err
	}
	f.CreatedAt = t
	return f, nil
}

// GetFolders returns the workspace's folders ordered by creation time.
func (s *Store) GetFolders(ctx context.Context, workspaceID string) ([]types.Folder, error) {
	if err := checkID(workspaceID); err != nil {
		return nil, err
	}
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := db.QueryContext(ctx, s.q(`SELECT `+columnList("", folderColumns)+` FROM folders WHERE workspace_id = ?`+orderCreated), workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}
	defer rows.Close()

	out := []types.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFiles returns the folder's files ordered by creation time. A malformed
// folder id is rejected before the database is touched.
func (s *Store) GetFiles(ctx context.Context, folderID string) ([]types.File, error) {
	if err := checkID(folderID); err != nil {
		return nil, err
	}
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := db.QueryContext(ctx, s.q(`SELECT `+columnList("", fileColumns)+` FROM files WHERE folder_id = ?`+orderCreated), folderID)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	out := []types.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateFolder inserts f into an existing workspace.
func (s *Store) CreateFolder(ctx context.Context, f types.Folder) error {
	if err := checkID(f.ID); err != nil {
		return err
	}
	if err := checkID(f.WorkspaceID); err != nil {
		return fmt.Errorf("folder workspace: %w", err)
	}
	if strings.TrimSpace(f.Title) == "" {
		return types.ErrInvalidName
	}
	if f.CreatedAt == nil {
		t := now()
		f.CreatedAt = &t
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

	found, err := s.exists(ctx, tx, `SELECT 1 FROM workspaces WHERE id = ?`, f.WorkspaceID)
	if err != nil {
		return fmt.Errorf("checking workspace: %w", err)
	}
	if !found {
		return fmt.Errorf("workspace %s: %w", f.WorkspaceID, types.ErrNotFound)
	}
	dup, err := s.exists(ctx, tx, `SELECT 1 FROM folders WHERE id = ?`, f.ID)
	if err != nil {
		return fmt.Errorf("checking folder: %w", err)
	}
	if dup {
		return fmt.Errorf("folder %s: %w", f.ID, types.ErrDuplicate)
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO folders (`+columnList("", folderColumns)+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		f.ID, f.WorkspaceID, f.Title, f.IconID, f.Data, f.BannerURL, formatTime(f.CreatedAt), f.InTrash)
	if err != nil {
		return fmt.Errorf("inserting folder: %w", err)
	}
	return tx.Commit()
}

func (s *Store) UpdateFolder(ctx context.Context, folderID string, patch types.ItemPatch) error {
	if err := checkID(folderID); err != nil {
		return err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return types.ErrInvalidName
	}
	return s.update(ctx, "folders", folderID, itemAssignments(patch))
}

// DeleteFolder removes the folder and its files. Deleting a missing folder
// succeeds.
func (s *Store) DeleteFolder(ctx context.Context, folderID string) error {
	if err := checkID(folderID); err != nil {
		return err
	}
	return s.deleteCascade(ctx, []cascadeStep{
		{"DELETE FROM files WHERE folder_id = ?", folderID},
		{"DELETE FROM folders WHERE id = ?", folderID},
	})
}

// CreateFile inserts f into an existing folder. The folder must belong to
// f.WorkspaceID.
func (s *Store) CreateFile(ctx context.Context, f types.File) error {
	if err := checkID(f.ID); err != nil {
		return err
	}
	if err := checkID(f.FolderID); err != nil {
		return fmt.Errorf("file folder: %w", err)
	}
	if err := checkID(f.WorkspaceID); err != nil {
		return fmt.Errorf("file workspace: %w", err)
	}
	if strings.TrimSpace(f.Title) == "" {
		return types.ErrInvalidName
	}
	if f.CreatedAt == nil {
		t := now()
		f.CreatedAt = &t
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

	var workspaceID string
	err = tx.QueryRowContext(ctx, s.q(`SELECT workspace_id FROM folders WHERE id = ?`), f.FolderID).Scan(&workspaceID)
	if isNoRows(err) {
		return fmt.Errorf("folder %s: %w", f.FolderID, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking folder: %w", err)
	}
	if workspaceID != f.WorkspaceID {
		return fmt.Errorf("folder %s is not in workspace %s: %w", f.FolderID, f.WorkspaceID, types.ErrInvalidData)
	}
	dup, err := s.exists(ctx, tx, `SELECT 1 FROM files WHERE id = ?`, f.ID)
	if err != nil {
		return fmt.Errorf("checking file: %w", err)
	}
	if dup {
		return fmt.Errorf("file %s: %w", f.ID, types.ErrDuplicate)
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO files (`+columnList("", fileColumns)+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		f.ID, f.FolderID, f.WorkspaceID, f.Title, f.IconID, f.Data, f.BannerURL, formatTime(f.CreatedAt), f.InTrash)
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}
	return tx.Commit()
}

func (s *Store) UpdateFile(ctx context.Context, fileID string, patch types.ItemPatch) error {
	if err := checkID(fileID); err != nil {
		return err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return types.ErrInvalidName
	}
	return s.update(ctx, "files", fileID, itemAssignments(patch))
}

// MoveFile reassigns a file to folderID. Both must live in the same
// workspace.
func (s *Store) MoveFile(ctx context.Context, fileID, folderID string) error {
	if err := checkID(fileID); err != nil {
		return err
	}
	if err := checkID(folderID); err != nil {
		return err
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

	var fileWorkspace, folderWorkspace string
	err = tx.QueryRowContext(ctx, s.q(`SELECT workspace_id FROM files WHERE id = ?`), fileID).Scan(&fileWorkspace)
	if isNoRows(err) {
		return fmt.Errorf("file %s: %w", fileID, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking file: %w", err)
	}
	err = tx.QueryRowContext(ctx, s.q(`SELECT workspace_id FROM folders WHERE id = ?`), folderID).Scan(&folderWorkspace)
	if isNoRows(err) {
		return fmt.Errorf("folder %s: %w", folderID, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking folder: %w", err)
	}
	if fileWorkspace != folderWorkspace {
		return fmt.Errorf("moving file across workspaces: %w", types.ErrInvalidData)
	}
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE files SET folder_id = ? WHERE id = ?`), folderID, fileID); err != nil {
		return fmt.Errorf("moving file: %w", err)
	}
	return tx.Commit()
}

// DeleteFile removes a file. Deleting a missing file succeeds.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	if err := checkID(fileID); err != nil {
		return err
	}
	return s.deleteCascade(ctx, []cascadeStep{
		{"DELETE FROM files WHERE id = ?", fileID},
	})
}

func itemAssignments(p types.ItemPatch) []assignment {
	return []assignment{
		{"title", p.Title},
		{"icon_id", p.IconID},
		{"banner_url", p.BannerURL},
		{"in_trash", p.InTrash},
		{"data", p.Data},
	}
}
