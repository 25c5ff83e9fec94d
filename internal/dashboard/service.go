// Package dashboard implements the user-facing workspace, folder and file
// operations. Mutations are applied to the session store first and rolled
// back with the compensating action when the gateway rejects them.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Defaults for newly created items.
const (
	DefaultTitle         = "Untitled"
	DefaultItemIcon      = "📄"
	DefaultWorkspaceIcon = "💼"
)

// Permission selects who can see a new workspace.
type Permission string

const (
	PermissionPrivate Permission = "private"
	PermissionShared  Permission = "shared"
)

// WorkspaceInput describes a workspace to create.
type WorkspaceInput struct {
	Title         string       `json:"title"`
	IconID        string       `json:"iconId"`
	Logo          *string      `json:"logo,omitempty"`
	Permission    Permission   `json:"permission"`
	Collaborators []types.User `json:"collaborators"`
}

// Service runs dashboard operations against one session store.
type Service struct {
	gateway types.Gateway
	store   *state.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewService returns a Service. A nil logger discards.
func NewService(gateway types.Gateway, store *state.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		gateway: gateway,
		store:   store,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateWorkspace persists a new workspace owned by owner and adds it to the
// store. A shared workspace needs at least one collaborator other than the
// owner; if linking them fails the workspace is removed again.
func (s *Service) CreateWorkspace(ctx context.Context, owner types.User, in WorkspaceInput) (types.Workspace, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return types.Workspace{}, types.ErrInvalidName
	}
	if in.Permission == "" {
		in.Permission = PermissionPrivate
	}

	var collaborators []types.User
	switch in.Permission {
	case PermissionPrivate:
	case PermissionShared:
		for _, c := range in.Collaborators {
			if c.ID != owner.ID {
				collaborators = append(collaborators, c)
			}
		}
		if len(collaborators) == 0 {
			return types.Workspace{}, types.ErrNoCollaborators
		}
	default:
		return types.Workspace{}, fmt.Errorf("permission %q: %w", in.Permission, types.ErrInvalidData)
	}

	icon := in.IconID
	if icon == "" {
		icon = DefaultWorkspaceIcon
	}
	created := s.now()
	w := types.Workspace{
		ID:             types.NewID(),
		Title:          title,
		WorkspaceOwner: owner.ID,
		IconID:         icon,
		Logo:           in.Logo,
		CreatedAt:      &created,
	}

	if err := s.gateway.CreateWorkspace(ctx, w); err != nil {
		return types.Workspace{}, fmt.Errorf("creating workspace: %w", err)
	}
	if len(collaborators) > 0 {
		if err := s.gateway.AddCollaborators(ctx, collaborators, w.ID); err != nil {
			if derr := s.gateway.DeleteWorkspace(ctx, w.ID); derr != nil {
				s.logger.Error("removing workspace after collaborator failure", "workspace", w.ID, "error", derr)
			}
			return types.Workspace{}, fmt.Errorf("adding collaborators: %w", err)
		}
	}

	s.store.Dispatch(state.AddWorkspace{Workspace: state.NewWorkspace(w)})
	s.logger.Info("workspace created", "workspace", w.ID, "permission", in.Permission, "collaborators", len(collaborators))
	return w, nil
}

// UpdateWorkspace applies patch optimistically.
func (s *Service) UpdateWorkspace(ctx context.Context, workspaceID string, patch types.WorkspacePatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return types.ErrInvalidName
	}
	prev, known := s.store.FindWorkspace(workspaceID)
	s.store.Dispatch(state.UpdateWorkspace{WorkspaceID: workspaceID, Patch: patch})

	if err := s.gateway.UpdateWorkspace(ctx, workspaceID, patch); err != nil {
		if known {
			s.store.Dispatch(state.UpdateWorkspace{WorkspaceID: workspaceID, Patch: revertWorkspace(prev.Workspace, patch)})
		}
		s.logger.Warn("workspace update rolled back", "workspace", workspaceID, "error", err)
		return fmt.Errorf("updating workspace: %w", err)
	}
	return nil
}

// RenameWorkspace sets the workspace title.
func (s *Service) RenameWorkspace(ctx context.Context, workspaceID, title string) error {
	return s.UpdateWorkspace(ctx, workspaceID, types.WorkspacePatch{Title: &title})
}

// DeleteWorkspace removes a workspace the user owns.
func (s *Service) DeleteWorkspace(ctx context.Context, user types.User, workspaceID string) error {
	w, err := s.gateway.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("loading workspace: %w", err)
	}
	if w.WorkspaceOwner != user.ID {
		return types.ErrNotOwner
	}

	// The rollback puts the workspace back where it was listed.
	before := s.store.State().Workspaces
	index := slices.IndexFunc(before, func(w state.Workspace) bool { return w.ID == workspaceID })
	s.store.Dispatch(state.DeleteWorkspace{WorkspaceID: workspaceID})

	if err := s.gateway.DeleteWorkspace(ctx, workspaceID); err != nil {
		if index >= 0 {
			s.store.Dispatch(state.InsertWorkspace{Index: index, Workspace: before[index]})
		}
		s.logger.Warn("workspace delete rolled back", "workspace", workspaceID, "error", err)
		return fmt.Errorf("deleting workspace: %w", err)
	}
	return nil
}

// AddCollaborators links users to a workspace the user owns.
func (s *Service) AddCollaborators(ctx context.Context, user types.User, workspaceID string, users []types.User) error {
	if err := s.requireOwner(ctx, user, workspaceID); err != nil {
		return err
	}
	if err := s.gateway.AddCollaborators(ctx, withoutUser(users, user.ID), workspaceID); err != nil {
		return fmt.Errorf("adding collaborators: %w", err)
	}
	return nil
}

// RemoveCollaborators unlinks users from a workspace the user owns.
func (s *Service) RemoveCollaborators(ctx context.Context, user types.User, workspaceID string, users []types.User) error {
	if err := s.requireOwner(ctx, user, workspaceID); err != nil {
		return err
	}
	if err := s.gateway.RemoveCollaborators(ctx, users, workspaceID); err != nil {
		return fmt.Errorf("removing collaborators: %w", err)
	}
	return nil
}

func (s *Service) requireOwner(ctx context.Context, user types.User, workspaceID string) error {
	w, err := s.gateway.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("loading workspace: %w", err)
	}
	if w.WorkspaceOwner != user.ID {
		return types.ErrNotOwner
	}
	return nil
}

// LoadFolders fetches the workspace's folders and replaces them in the
// store.
func (s *Service) LoadFolders(ctx context.Context, workspaceID string) ([]types.Folder, error) {
	folders, err := s.gateway.GetFolders(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("loading folders: %w", err)
	}
	wrapped := make([]state.Folder, len(folders))
	for i, f := range folders {
		wrapped[i] = state.NewFolder(f)
		if prev, ok := s.store.FindFolder(workspaceID, f.ID); ok {
			wrapped[i].Files = prev.Files
		}
	}
	s.store.Dispatch(state.SetFolders{WorkspaceID: workspaceID, Folders: wrapped})
	return folders, nil
}

func revertWorkspace(prev types.Workspace, p types.WorkspacePatch) types.WorkspacePatch {
	var r types.WorkspacePatch
	if p.Title != nil {
		r.Title = &prev.Title
	}
	if p.IconID != nil {
		r.IconID = &prev.IconID
	}
	if p.Logo != nil {
		empty := ""
		r.Logo = &empty
		if prev.Logo != nil {
			r.Logo = prev.Logo
		}
	}
	if p.BannerURL != nil {
		r.BannerURL = &prev.BannerURL
	}
	if p.InTrash != nil {
		r.InTrash = &prev.InTrash
	}
	if p.Data != nil {
		r.Data = &prev.Data
	}
	return r
}

func withoutUser(users []types.User, id string) []types.User {
	out := make([]types.User, 0, len(users))
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}
