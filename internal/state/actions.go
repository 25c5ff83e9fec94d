package state

import "github.com/mesh-intelligence/cypress/pkg/types"

// Action is a tagged change request for Reduce. The set is closed; actions
// from outside this package are ignored by the reducer.
type Action interface {
	// Kind names the action for logging.
	Kind() string
	action()
}

type (
	// SetWorkspaces replaces the workspace collection verbatim.
	SetWorkspaces struct {
		Workspaces []Workspace
	}

	// AddWorkspace appends one workspace.
	AddWorkspace struct {
		Workspace Workspace
	}

	// InsertWorkspace puts one workspace at Index, clamped to the
	// collection's bounds. A workspace already present is left alone.
	InsertWorkspace struct {
		Index     int
		Workspace Workspace
	}

	// DeleteWorkspace removes a workspace by id.
	DeleteWorkspace struct {
		WorkspaceID string
	}

	// UpdateWorkspace merges a patch into a workspace.
	UpdateWorkspace struct {
		WorkspaceID string
		Patch       types.WorkspacePatch
	}

	// SetFolders replaces a workspace's folders.
	SetFolders struct {
		WorkspaceID string
		Folders     []Folder
	}

	// AddFolder appends a folder to one workspace.
	AddFolder struct {
		WorkspaceID string
		Folder      Folder
	}

	UpdateFolder struct {
		WorkspaceID string
		FolderID    string
		Patch       types.ItemPatch
	}

	DeleteFolder struct {
		WorkspaceID string
		FolderID    string
	}

	// SetFiles replaces a folder's files as given.
	SetFiles struct {
		WorkspaceID string
		FolderID    string
		Files       []types.File
	}

	AddFile struct {
		WorkspaceID string
		FolderID    string
		File        types.File
	}

	UpdateFile struct {
		WorkspaceID string
		FolderID    string
		FileID      string
		Patch       types.ItemPatch
	}

	DeleteFile struct {
		WorkspaceID string
		FolderID    string
		FileID      string
	}

	// MoveFile relocates a file between two folders of one workspace.
	MoveFile struct {
		WorkspaceID  string
		FromFolderID string
		ToFolderID   string
		FileID       string
	}
)

func (SetWorkspaces) Kind() string   { return "SET_WORKSPACES" }
func (AddWorkspace) Kind() string    { return "ADD_WORKSPACE" }
func (InsertWorkspace) Kind() string { return "INSERT_WORKSPACE" }
func (DeleteWorkspace) Kind() string { return "DELETE_WORKSPACE" }
func (UpdateWorkspace) Kind() string { return "UPDATE_WORKSPACE" }
func (SetFolders) Kind() string      { return "SET_FOLDERS" }
func (AddFolder) Kind() string       { return "ADD_FOLDER" }
func (UpdateFolder) Kind() string    { return "UPDATE_FOLDER" }
func (DeleteFolder) Kind() string    { return "DELETE_FOLDER" }
func (SetFiles) Kind() string        { return "SET_FILES" }
func (AddFile) Kind() string         { return "ADD_FILE" }
func (UpdateFile) Kind() string      { return "UPDATE_FILE" }
func (DeleteFile) Kind() string      { return "DELETE_FILE" }
func (MoveFile) Kind() string        { return "MOVE_FILE" }

func (SetWorkspaces) action()   {}
func (AddWorkspace) action()    {}
func (InsertWorkspace) action() {}
func (DeleteWorkspace) action() {}
func (UpdateWorkspace) action() {}
func (SetFolders) action()      {}
func (AddFolder) action()       {}
func (UpdateFolder) action()    {}
func (DeleteFolder) action()    {}
func (SetFiles) action()        {}
func (AddFile) action()         {}
func (UpdateFile) action()      {}
func (DeleteFile) action()      {}
func (MoveFile) action()        {}
