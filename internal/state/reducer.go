package state

import (
	"slices"
	"time"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Reduce returns the state that results from applying a to s. It is total:
// actions that name a missing workspace, folder or file, and action types it
// does not know, return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetWorkspaces:
		return State{Workspaces: slices.Clone(a.Workspaces)}

	case AddWorkspace:
		w := a.Workspace
		if w.Folders == nil {
			w.Folders = []Folder{}
		}
		return State{Workspaces: append(slices.Clone(s.Workspaces), w)}

	case InsertWorkspace:
		if s.workspaceIndex(a.Workspace.ID) >= 0 {
			return s
		}
		w := a.Workspace
		if w.Folders == nil {
			w.Folders = []Folder{}
		}
		i := min(max(a.Index, 0), len(s.Workspaces))
		return State{Workspaces: slices.Insert(slices.Clone(s.Workspaces), i, w)}

	case DeleteWorkspace:
		return State{Workspaces: slices.DeleteFunc(slices.Clone(s.Workspaces), func(w Workspace) bool {
			return w.ID == a.WorkspaceID
		})}

	case UpdateWorkspace:
		return s.withWorkspace(a.WorkspaceID, func(w Workspace) Workspace {
			w.Workspace = a.Patch.Apply(w.Workspace)
			return w
		})

	case SetFolders:
		return s.withWorkspace(a.WorkspaceID, func(w Workspace) Workspace {
			w.Folders = sortFolders(slices.Clone(a.Folders))
			return w
		})

	case AddFolder:
		f := a.Folder
		if f.Files == nil {
			f.Files = []types.File{}
		}
		return s.withWorkspace(a.WorkspaceID, func(w Workspace) Workspace {
			w.Folders = sortFolders(append(slices.Clone(w.Folders), f))
			return w
		})

	case UpdateFolder:
		return s.withFolder(a.WorkspaceID, a.FolderID, func(f Folder) Folder {
			f.Folder = a.Patch.ApplyFolder(f.Folder)
			return f
		})

	case DeleteFolder:
		return s.withWorkspace(a.WorkspaceID, func(w Workspace) Workspace {
			w.Folders = slices.DeleteFunc(slices.Clone(w.Folders), func(f Folder) bool {
				return f.ID == a.FolderID
			})
			return w
		})

	case SetFiles:
		return s.withFolder(a.WorkspaceID, a.FolderID, func(f Folder) Folder {
			f.Files = slices.Clone(a.Files)
			if f.Files == nil {
				f.Files = []types.File{}
			}
			return f
		})

	case AddFile:
		return s.withFolder(a.WorkspaceID, a.FolderID, func(f Folder) Folder {
			f.Files = sortFiles(append(slices.Clone(f.Files), a.File))
			return f
		})

	case UpdateFile:
		return s.withFolder(a.WorkspaceID, a.FolderID, func(f Folder) Folder {
			i := fileIndex(f.Files, a.FileID)
			if i < 0 {
				return f
			}
			f.Files = slices.Clone(f.Files)
			f.Files[i] = a.Patch.ApplyFile(f.Files[i])
			return f
		})

	case DeleteFile:
		return s.withFolder(a.WorkspaceID, a.FolderID, func(f Folder) Folder {
			f.Files = slices.DeleteFunc(slices.Clone(f.Files), func(x types.File) bool {
				return x.ID == a.FileID
			})
			return f
		})

	case MoveFile:
		return s.moveFile(a)
	}
	return s
}

// withWorkspace returns a copy of s in which the workspace id is replaced by
// fn's result. Missing ids leave s as is.
func (s State) withWorkspace(id string, fn func(Workspace) Workspace) State {
	i := s.workspaceIndex(id)
	if i < 0 {
		return s
	}
	out := slices.Clone(s.Workspaces)
	out[i] = fn(out[i])
	return State{Workspaces: out}
}

func (s State) withFolder(workspaceID, folderID string, fn func(Folder) Folder) State {
	if _, ok := s.Folder(workspaceID, folderID); !ok {
		return s
	}
	return s.withWorkspace(workspaceID, func(w Workspace) Workspace {
		i := w.folderIndex(folderID)
		w.Folders = slices.Clone(w.Folders)
		w.Folders[i] = fn(w.Folders[i])
		return w
	})
}

func (s State) moveFile(a MoveFile) State {
	if a.FromFolderID == a.ToFolderID {
		return s
	}
	file, ok := s.File(a.WorkspaceID, a.FromFolderID, a.FileID)
	if !ok {
		return s
	}
	if _, ok := s.Folder(a.WorkspaceID, a.ToFolderID); !ok {
		return s
	}
	file.FolderID = a.ToFolderID
	s = Reduce(s, DeleteFile{WorkspaceID: a.WorkspaceID, FolderID: a.FromFolderID, FileID: a.FileID})
	return Reduce(s, AddFile{WorkspaceID: a.WorkspaceID, FolderID: a.ToFolderID, File: file})
}

// compareCreated orders by creation time ascending. A missing timestamp on
// either side compares equal so the stable sort keeps insertion order.
func compareCreated(a, b *time.Time) int {
	if a == nil || b == nil {
		return 0
	}
	return a.Compare(*b)
}

func sortFolders(fs []Folder) []Folder {
	if fs == nil {
		return []Folder{}
	}
	slices.SortStableFunc(fs, func(a, b Folder) int { return compareCreated(a.CreatedAt, b.CreatedAt) })
	return fs
}

func sortFiles(fs []types.File) []types.File {
	slices.SortStableFunc(fs, func(a, b types.File) int { return compareCreated(a.CreatedAt, b.CreatedAt) })
	return fs
}
