package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// TrashMarker is the inTrash value recorded when user trashes an item.
func TrashMarker(user types.User) string {
	return "Deleted by " + user.Email
}

// CreateFolder adds a folder to the workspace. On the free tier a workspace
// holds at most types.MaxFoldersFreePlan folders.
func (s *Service) CreateFolder(ctx context.Context, user types.User, workspaceID, title string) (types.Folder, error) {
	if _, ok := s.store.FindWorkspace(workspaceID); !ok {
		return types.Folder{}, fmt.Errorf("workspace %s: %w", workspaceID, types.ErrNotFound)
	}
	sub, err := s.gateway.GetUserSubscriptionStatus(ctx, user.ID)
	if err != nil {
		return types.Folder{}, fmt.Errorf("loading subscription: %w", err)
	}
	if !sub.Paid() {
		existing, err := s.gateway.GetFolders(ctx, workspaceID)
		if err != nil {
			return types.Folder{}, fmt.Errorf("counting folders: %w", err)
		}
		if len(existing) >= types.MaxFoldersFreePlan {
			return types.Folder{}, types.ErrFolderLimit
		}
	}

	created := s.now()
	f := types.Folder{
		ID:          types.NewID(),
		WorkspaceID: workspaceID,
		Title:       titleOrDefault(title),
		IconID:      DefaultItemIcon,
		CreatedAt:   &created,
	}
	s.store.Dispatch(state.AddFolder{WorkspaceID: workspaceID, Folder: state.NewFolder(f)})

	if err := s.gateway.CreateFolder(ctx, f); err != nil {
		s.store.Dispatch(state.DeleteFolder{WorkspaceID: workspaceID, FolderID: f.ID})
		s.logger.Warn("folder create rolled back", "workspace", workspaceID, "folder", f.ID, "error", err)
		return types.Folder{}, fmt.Errorf("creating folder: %w", err)
	}
	return f, nil
}

// UpdateFolder applies patch optimistically.
func (s *Service) UpdateFolder(ctx context.Context, workspaceID, folderID string, patch types.ItemPatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return types.ErrInvalidName
	}
	prev, err := s.locateFolder(ctx, workspaceID, folderID)
	if err != nil {
		return err
	}
	s.store.Dispatch(state.UpdateFolder{WorkspaceID: workspaceID, FolderID: folderID, Patch: patch})

	if err := s.gateway.UpdateFolder(ctx, folderID, patch); err != nil {
		undo := revertItem(prev.Title, prev.IconID, prev.BannerURL, prev.InTrash, prev.Data, patch)
		s.store.Dispatch(state.UpdateFolder{WorkspaceID: workspaceID, FolderID: folderID, Patch: undo})
		s.logger.Warn("folder update rolled back", "folder", folderID, "error", err)
		return fmt.Errorf("updating folder: %w", err)
	}
	return nil
}

func (s *Service) RenameFolder(ctx context.Context, workspaceID, folderID, title string) error {
	return s.UpdateFolder(ctx, workspaceID, folderID, types.ItemPatch{Title: &title})
}

// TrashFolder marks the folder as deleted by user without removing it.
func (s *Service) TrashFolder(ctx context.Context, user types.User, workspaceID, folderID string) error {
	marker := TrashMarker(user)
	return s.UpdateFolder(ctx, workspaceID, folderID, types.ItemPatch{InTrash: &marker})
}

// RestoreFolder clears the trash marker.
func (s *Service) RestoreFolder(ctx context.Context, workspaceID, folderID string) error {
	empty := ""
	return s.UpdateFolder(ctx, workspaceID, folderID, types.ItemPatch{InTrash: &empty})
}

// DeleteFolder removes the folder and its files.
func (s *Service) DeleteFolder(ctx context.Context, workspaceID, folderID string) error {
	prev, err := s.locateFolder(ctx, workspaceID, folderID)
	if err != nil {
		return err
	}
	s.store.Dispatch(state.DeleteFolder{WorkspaceID: workspaceID, FolderID: folderID})

	if err := s.gateway.DeleteFolder(ctx, folderID); err != nil {
		s.store.Dispatch(state.AddFolder{WorkspaceID: workspaceID, Folder: prev})
		s.logger.Warn("folder delete rolled back", "folder", folderID, "error", err)
		return fmt.Errorf("deleting folder: %w", err)
	}
	return nil
}

// CreateFile adds a file to the folder.
func (s *Service) CreateFile(ctx context.Context, workspaceID, folderID, title string) (types.File, error) {
	if _, ok := s.store.FindFolder(workspaceID, folderID); !ok {
		return types.File{}, fmt.Errorf("folder %s: %w", folderID, types.ErrNotFound)
	}
	created := s.now()
	f := types.File{
		ID:          types.NewID(),
		FolderID:    folderID,
		WorkspaceID: workspaceID,
		Title:       titleOrDefault(title),
		IconID:      DefaultItemIcon,
		CreatedAt:   &created,
	}
	s.store.Dispatch(state.AddFile{WorkspaceID: workspaceID, FolderID: folderID, File: f})

	if err := s.gateway.CreateFile(ctx, f); err != nil {
		s.store.Dispatch(state.DeleteFile{WorkspaceID: workspaceID, FolderID: folderID, FileID: f.ID})
		s.logger.Warn("file create rolled back", "folder", folderID, "file", f.ID, "error", err)
		return types.File{}, fmt.Errorf("creating file: %w", err)
	}
	return f, nil
}

// UpdateFile applies patch optimistically.
func (s *Service) UpdateFile(ctx context.Context, workspaceID, folderID, fileID string, patch types.ItemPatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return types.ErrInvalidName
	}
	prev, err := s.locateFile(ctx, workspaceID, folderID, fileID)
	if err != nil {
		return err
	}
	s.store.Dispatch(state.UpdateFile{WorkspaceID: workspaceID, FolderID: folderID, FileID: fileID, Patch: patch})

	if err := s.gateway.UpdateFile(ctx, fileID, patch); err != nil {
		undo := revertItem(prev.Title, prev.IconID, prev.BannerURL, prev.InTrash, prev.Data, patch)
		s.store.Dispatch(state.UpdateFile{WorkspaceID: workspaceID, FolderID: folderID, FileID: fileID, Patch: undo})
		s.logger.Warn("file update rolled back", "file", fileID, "error", err)
		return fmt.Errorf("updating file: %w", err)
	}
	return nil
}

func (s *Service) RenameFile(ctx context.Context, workspaceID, folderID, fileID, title string) error {
	return s.UpdateFile(ctx, workspaceID, folderID, fileID, types.ItemPatch{Title: &title})
}

func (s *Service) TrashFile(ctx context.Context, user types.User, workspaceID, folderID, fileID string) error {
	marker := TrashMarker(user)
	return s.UpdateFile(ctx, workspaceID, folderID, fileID, types.ItemPatch{InTrash: &marker})
}

func (s *Service) RestoreFile(ctx context.Context, workspaceID, folderID, fileID string) error {
	empty := ""
	return s.UpdateFile(ctx, workspaceID, folderID, fileID, types.ItemPatch{InTrash: &empty})
}

func (s *Service) DeleteFile(ctx context.Context, workspaceID, folderID, fileID string) error {
	prev, err := s.locateFile(ctx, workspaceID, folderID, fileID)
	if err != nil {
		return err
	}
	s.store.Dispatch(state.DeleteFile{WorkspaceID: workspaceID, FolderID: folderID, FileID: fileID})

	if err := s.gateway.DeleteFile(ctx, fileID); err != nil {
		s.store.Dispatch(state.AddFile{WorkspaceID: workspaceID, FolderID: folderID, File: prev})
		s.logger.Warn("file delete rolled back", "file", fileID, "error", err)
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// MoveFile relocates a file to another folder of the same workspace. The
// file must currently sit in fromFolderID.
func (s *Service) MoveFile(ctx context.Context, workspaceID, fromFolderID, toFolderID, fileID string) error {
	if _, err := s.locateFile(ctx, workspaceID, fromFolderID, fileID); err != nil {
		return err
	}
	if _, err := s.locateFolder(ctx, workspaceID, toFolderID); err != nil {
		return err
	}
	move := state.MoveFile{WorkspaceID: workspaceID, FromFolderID: fromFolderID, ToFolderID: toFolderID, FileID: fileID}
	s.store.Dispatch(move)

	if err := s.gateway.MoveFile(ctx, fileID, toFolderID); err != nil {
		move.FromFolderID, move.ToFolderID = toFolderID, fromFolderID
		s.store.Dispatch(move)
		s.logger.Warn("file move rolled back", "file", fileID, "error", err)
		return fmt.Errorf("moving file: %w", err)
	}
	return nil
}

// locateFolder returns the folder only if it belongs to the workspace,
// reloading the workspace's folders once when the store has not seen it.
// Gateway writes are keyed by bare id alone.
func (s *Service) locateFolder(ctx context.Context, workspaceID, folderID string) (state.Folder, error) {
	if f, ok := s.store.FindFolder(workspaceID, folderID); ok {
		return f, nil
	}
	if _, ok := s.store.FindWorkspace(workspaceID); !ok {
		return state.Folder{}, fmt.Errorf("workspace %s: %w", workspaceID, types.ErrNotFound)
	}
	if _, err := s.LoadFolders(ctx, workspaceID); err != nil {
		return state.Folder{}, err
	}
	if f, ok := s.store.FindFolder(workspaceID, folderID); ok {
		return f, nil
	}
	return state.Folder{}, fmt.Errorf("folder %s: %w", folderID, types.ErrNotFound)
}

// locateFile returns the file only if it sits in the folder, hydrating the
// folder's files when the store does not hold it yet.
func (s *Service) locateFile(ctx context.Context, workspaceID, folderID, fileID string) (types.File, error) {
	if f, ok := s.store.FindFile(workspaceID, folderID, fileID); ok {
		return f, nil
	}
	if _, err := s.locateFolder(ctx, workspaceID, folderID); err != nil {
		return types.File{}, err
	}
	files, err := s.gateway.GetFiles(ctx, folderID)
	if err != nil {
		return types.File{}, fmt.Errorf("loading files: %w", err)
	}
	s.store.Dispatch(state.SetFiles{WorkspaceID: workspaceID, FolderID: folderID, Files: files})
	if f, ok := s.store.FindFile(workspaceID, folderID, fileID); ok {
		return f, nil
	}
	return types.File{}, fmt.Errorf("file %s: %w", fileID, types.ErrNotFound)
}

func titleOrDefault(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return DefaultTitle
}

// revertItem builds the patch that restores the fields p touched to their
// previous values.
func revertItem(title, icon, banner, inTrash, data string, p types.ItemPatch) types.ItemPatch {
	var r types.ItemPatch
	if p.Title != nil {
		r.Title = &title
	}
	if p.IconID != nil {
		r.IconID = &icon
	}
	if p.BannerURL != nil {
		r.BannerURL = &banner
	}
	if p.InTrash != nil {
		r.InTrash = &inTrash
	}
	if p.Data != nil {
		r.Data = &data
	}
	return r
}
