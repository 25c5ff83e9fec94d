// Package state holds the session's normalized workspace tree and the
// reducer that is the only way to change it.
//
// A State is a value: Reduce never mutates its input, and every slice in the
// returned State is freshly allocated along the path that changed, so a
// snapshot handed to a subscriber stays valid after later dispatches.
package state

import (
	"slices"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

// State is the root of the tree.
type State struct {
	Workspaces []Workspace `json:"workspaces"`
}

// Workspace is a workspace together with its loaded folders.
type Workspace struct {
	types.Workspace
	Folders []Folder `json:"folders"`
}

// Folder is a folder together with its loaded files.
type Folder struct {
	types.Folder
	Files []types.File `json:"files"`
}

// NewWorkspace wraps w with an empty folder list.
func NewWorkspace(w types.Workspace) Workspace {
	return Workspace{Workspace: w, Folders: []Folder{}}
}

// NewFolder wraps f with an empty file list.
func NewFolder(f types.Folder) Folder {
	return Folder{Folder: f, Files: []types.File{}}
}

// Workspace returns the workspace with the given id.
func (s State) Workspace(id string) (Workspace, bool) {
	i := s.workspaceIndex(id)
	if i < 0 {
		return Workspace{}, false
	}
	return s.Workspaces[i], true
}

// Folder returns the folder folderID inside workspace workspaceID.
func (s State) Folder(workspaceID, folderID string) (Folder, bool) {
	w, ok := s.Workspace(workspaceID)
	if !ok {
		return Folder{}, false
	}
	i := w.folderIndex(folderID)
	if i < 0 {
		return Folder{}, false
	}
	return w.Folders[i], true
}

// File returns the file at the full path workspaceID/folderID/fileID.
func (s State) File(workspaceID, folderID, fileID string) (types.File, bool) {
	f, ok := s.Folder(workspaceID, folderID)
	if !ok {
		return types.File{}, false
	}
	i := fileIndex(f.Files, fileID)
	if i < 0 {
		return types.File{}, false
	}
	return f.Files[i], true
}

// FolderCount returns the number of loaded folders in the workspace.
func (s State) FolderCount(workspaceID string) int {
	w, ok := s.Workspace(workspaceID)
	if !ok {
		return 0
	}
	return len(w.Folders)
}

func (s State) workspaceIndex(id string) int {
	return slices.IndexFunc(s.Workspaces, func(w Workspace) bool { return w.ID == id })
}

func (w Workspace) folderIndex(id string) int {
	return slices.IndexFunc(w.Folders, func(f Folder) bool { return f.ID == id })
}

func fileIndex(files []types.File, id string) int {
	return slices.IndexFunc(files, func(f types.File) bool { return f.ID == id })
}
