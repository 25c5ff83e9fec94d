package types

import (
	"context"
	"errors"
)

// Gateway is the persistence boundary. Every read the session performs and
// every mutation the dashboard persists goes through it. Identifier
// arguments are validated before any database access; a malformed UUID
// yields ErrInvalidID.
type Gateway interface {
	// GetUserSubscriptionStatus returns the user's subscription, or nil with
	// a nil error when the user has none.
	GetUserSubscriptionStatus(ctx context.Context, userID string) (*Subscription, error)

	// GetFiles returns the folder's files ordered by createdAt.
	GetFiles(ctx context.Context, folderID string) ([]File, error)
	// GetFolders returns the workspace's folders ordered by createdAt.
	GetFolders(ctx context.Context, workspaceID string) ([]Folder, error)

	// GetPrivateWorkspaces returns workspaces owned by userID with no
	// collaborator rows.
	GetPrivateWorkspaces(ctx context.Context, userID string) ([]Workspace, error)
	// GetCollaboratingWorkspaces returns workspaces userID collaborates on.
	GetCollaboratingWorkspaces(ctx context.Context, userID string) ([]Workspace, error)
	// GetSharedWorkspaces returns workspaces owned by userID with at least one
	// collaborator row, each listed once.
	GetSharedWorkspaces(ctx context.Context, userID string) ([]Workspace, error)
	GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)
	// GetFirstOwnedWorkspace returns the oldest workspace owned by userID,
	// or nil with a nil error when the user owns none.
	GetFirstOwnedWorkspace(ctx context.Context, userID string) (*Workspace, error)

	CreateWorkspace(ctx context.Context, w Workspace) error
	UpdateWorkspace(ctx context.Context, workspaceID string, patch WorkspacePatch) error
	DeleteWorkspace(ctx context.Context, workspaceID string) error

	CreateFolder(ctx context.Context, f Folder) error
	UpdateFolder(ctx context.Context, folderID string, patch ItemPatch) error
	DeleteFolder(ctx context.Context, folderID string) error

	CreateFile(ctx context.Context, f File) error
	UpdateFile(ctx context.Context, fileID string, patch ItemPatch) error
	// MoveFile reassigns a file to another folder of the same workspace.
	MoveFile(ctx context.Context, fileID, folderID string) error
	DeleteFile(ctx context.Context, fileID string) error

	// AddCollaborators links users to the workspace, skipping existing links.
	AddCollaborators(ctx context.Context, users []User, workspaceID string) error
	RemoveCollaborators(ctx context.Context, users []User, workspaceID string) error
	GetCollaborators(ctx context.Context, workspaceID string) ([]User, error)

	// GetUsersFromSearch returns users whose email starts with prefix. An
	// empty prefix matches nobody.
	GetUsersFromSearch(ctx context.Context, prefix string) ([]User, error)
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	UpsertSubscription(ctx context.Context, s Subscription) error
}

// Backend is a Gateway with an attach/detach lifecycle. Callers attach to a
// backend, use it, and detach when done.
type Backend interface {
	Gateway

	// Attach connects the backend described by config. Returns
	// ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, gateway operations return ErrBackendDetached.
	Detach() error
}

// Backend lifecycle errors.
var (
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)

// Gateway operation errors.
var (
	ErrNotFound    = errors.New("entity not found")
	ErrInvalidID   = errors.New("invalid id")
	ErrInvalidData = errors.New("invalid entity data")
	ErrInvalidName = errors.New("invalid name")
	ErrDuplicate   = errors.New("entity already exists")
)

// Dashboard rule errors.
var (
	ErrFolderLimit     = errors.New("free plan folder limit reached")
	ErrNoCollaborators = errors.New("shared workspace needs at least one collaborator")
	ErrNotOwner        = errors.New("only the workspace owner can do this")
)
