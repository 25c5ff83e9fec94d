// Package route resolves workspace, folder and file identity from dashboard
// paths and classifies paths into the surfaces the auth rules care about.
package route

import (
	"strings"
	"sync"
)

// DashboardPrefix is the first segment of every dashboard path.
const DashboardPrefix = "dashboard"

// Descriptor is the identity carried by a dashboard path of the form
// /dashboard/{workspaceId}/{folderId}/{fileId}. Segments the path does not
// reach are empty.
type Descriptor struct {
	Path        string `json:"path"`
	WorkspaceID string `json:"workspaceId"`
	FolderID    string `json:"folderId"`
	FileID      string `json:"fileId"`
}

// HasWorkspace reports whether a workspace is selected.
func (d Descriptor) HasWorkspace() bool { return d.WorkspaceID != "" }

// HasFolder reports whether both a workspace and a folder are selected.
func (d Descriptor) HasFolder() bool { return d.WorkspaceID != "" && d.FolderID != "" }

// HasFile reports whether a workspace, folder and file are all selected.
func (d Descriptor) HasFile() bool { return d.HasFolder() && d.FileID != "" }

// Parse extracts the positional segments [_, workspaceId, folderId, fileId]
// from path. The first segment is discarded whatever it is; empty segments
// produced by leading, trailing or doubled slashes are ignored.
func Parse(path string) Descriptor {
	d := Descriptor{Path: path}
	segments := segments(path)
	if len(segments) > 1 {
		d.WorkspaceID = segments[1]
	}
	if len(segments) > 2 {
		d.FolderID = segments[2]
	}
	if len(segments) > 3 {
		d.FileID = segments[3]
	}
	return d
}

// DashboardPath builds the canonical path for the given identity, stopping
// at the first empty segment.
func DashboardPath(workspaceID, folderID, fileID string) string {
	var b strings.Builder
	b.WriteString("/" + DashboardPrefix)
	for _, s := range []string{workspaceID, folderID, fileID} {
		if s == "" {
			break
		}
		b.WriteString("/" + s)
	}
	return b.String()
}

func segments(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolver memoizes Parse on the most recent path. It is safe for
// concurrent use.
type Resolver struct {
	mu   sync.Mutex
	last Descriptor
	set  bool
}

// Resolve returns the descriptor for path, reusing the previous result when
// the path has not changed.
func (r *Resolver) Resolve(path string) Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set && r.last.Path == path {
		return r.last
	}
	r.last = Parse(path)
	r.set = true
	return r.last
}

// Current returns the last resolved descriptor.
func (r *Resolver) Current() Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
