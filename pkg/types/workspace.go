// Workspace, folder and file entities.
package types

import "time"

// Workspace is the top-level container owned by one user, optionally shared
// with collaborators.
type Workspace struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	WorkspaceOwner string     `json:"workspaceOwner"`
	IconID         string     `json:"iconId"`
	Logo           *string    `json:"logo"` // storage reference, nil when unset
	BannerURL      string     `json:"bannerUrl"`
	CreatedAt      *time.Time `json:"createdAt"` // nil for legacy rows
	InTrash        string     `json:"inTrash"`   // empty when not trashed
	Data           string     `json:"data"`
}

// Folder groups files inside a workspace.
type Folder struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspaceId"`
	Title       string     `json:"title"`
	IconID      string     `json:"iconId"`
	Data        string     `json:"data"`
	BannerURL   string     `json:"bannerUrl"`
	CreatedAt   *time.Time `json:"createdAt"`
	InTrash     string     `json:"inTrash"`
}

// File is a single note inside a folder.
type File struct {
	ID          string     `json:"id"`
	FolderID    string     `json:"folderId"`
	WorkspaceID string     `json:"workspaceId"`
	Title       string     `json:"title"`
	IconID      string     `json:"iconId"`
	Data        string     `json:"data"`
	BannerURL   string     `json:"bannerUrl"`
	CreatedAt   *time.Time `json:"createdAt"`
	InTrash     string     `json:"inTrash"`
}

// Trashed reports whether the workspace carries a trash marker.
func (w Workspace) Trashed() bool { return w.InTrash != "" }

// Trashed reports whether the folder carries a trash marker.
func (f Folder) Trashed() bool { return f.InTrash != "" }

// Trashed reports whether the file carries a trash marker.
func (f File) Trashed() bool { return f.InTrash != "" }

// WorkspacePatch carries a partial workspace update. Nil fields are left
// untouched; ID and owner are immutable and cannot be patched.
type WorkspacePatch struct {
	Title     *string `json:"title,omitempty"`
	IconID    *string `json:"iconId,omitempty"`
	Logo      *string `json:"logo,omitempty"`
	BannerURL *string `json:"bannerUrl,omitempty"`
	InTrash   *string `json:"inTrash,omitempty"`
	Data      *string `json:"data,omitempty"`
}

// Apply returns w with every non-nil patch field merged in.
func (p WorkspacePatch) Apply(w Workspace) Workspace {
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.IconID != nil {
		w.IconID = *p.IconID
	}
	if p.Logo != nil {
		logo := *p.Logo
		w.Logo = &logo
	}
	if p.BannerURL != nil {
		w.BannerURL = *p.BannerURL
	}
	if p.InTrash != nil {
		w.InTrash = *p.InTrash
	}
	if p.Data != nil {
		w.Data = *p.Data
	}
	return w
}

// Empty reports whether the patch changes nothing.
func (p WorkspacePatch) Empty() bool {
	return p == WorkspacePatch{}
}

// ItemPatch carries a partial folder or file update.
type ItemPatch struct {
	Title     *string `json:"title,omitempty"`
	IconID    *string `json:"iconId,omitempty"`
	BannerURL *string `json:"bannerUrl,omitempty"`
	InTrash   *string `json:"inTrash,omitempty"`
	Data      *string `json:"data,omitempty"`
}

// ApplyFolder returns f with every non-nil patch field merged in.
func (p ItemPatch) ApplyFolder(f Folder) Folder {
	p.apply(&f.Title, &f.IconID, &f.BannerURL, &f.InTrash, &f.Data)
	return f
}

// ApplyFile returns f with every non-nil patch field merged in.
func (p ItemPatch) ApplyFile(f File) File {
	p.apply(&f.Title, &f.IconID, &f.BannerURL, &f.InTrash, &f.Data)
	return f
}

func (p ItemPatch) apply(title, icon, banner, inTrash, data *string) {
	for _, pair := range []struct{ src, dst *string }{
		{p.Title, title},
		{p.IconID, icon},
		{p.BannerURL, banner},
		{p.InTrash, inTrash},
		{p.Data, data},
	} {
		if pair.src != nil {
			*pair.dst = *pair.src
		}
	}
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p == ItemPatch{}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }
