package httpapi

import (
	"fmt"
	"net/http"

	"github.com/mesh-intelligence/cypress/internal/route"
	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// handleDashboard sends the user to their first owned workspace, or asks
// the client to run workspace setup when they own none.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	us, _ := userFrom(r.Context())
	first, err := s.gateway.GetFirstOwnedWorkspace(r.Context(), us.user.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if first != nil {
		http.Redirect(w, r, route.DashboardPath(first.ID, "", ""), http.StatusSeeOther)
		return
	}
	sub, err := s.gateway.GetUserSubscriptionStatus(r.Context(), us.user.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"setup":        true,
		"user":         us.user,
		"subscription": sub,
	})
}

type dashboardView struct {
	Route     route.Descriptor `json:"route"`
	Workspace state.Workspace  `json:"workspace"`
	Folder    *state.Folder    `json:"folder,omitempty"`
	File      *types.File      `json:"file,omitempty"`
}

// handleDashboardView resolves the workspace, folder and file named by the
// path, hydrates the session for it and returns the resulting subtree.
func (s *Server) handleDashboardView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	us, _ := userFrom(ctx)
	d := route.Parse(r.URL.Path)

	ws, err := s.member(r, us, d.WorkspaceID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if _, err := us.service.LoadFolders(ctx, ws.ID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	us.session.Navigate(ctx, r.URL.Path)
	us.session.Wait()

	st := us.session.Store().State()
	view := dashboardView{Route: d}
	view.Workspace, _ = st.Workspace(d.WorkspaceID)
	if d.HasFolder() {
		f, ok := st.Folder(d.WorkspaceID, d.FolderID)
		if !ok {
			s.writeErr(w, r, fmt.Errorf("folder %s: %w", d.FolderID, types.ErrNotFound))
			return
		}
		view.Folder = &f
	}
	if d.HasFile() {
		x, ok := st.File(d.WorkspaceID, d.FolderID, d.FileID)
		if !ok {
			s.writeErr(w, r, fmt.Errorf("file %s: %w", d.FileID, types.ErrNotFound))
			return
		}
		view.File = &x
	}
	writeJSON(w, http.StatusOK, view)
}

// member seeds the user's store and returns the workspace if the user can
// see it.
func (s *Server) member(r *http.Request, us *userSession, workspaceID string) (state.Workspace, error) {
	if !types.ValidID(workspaceID) {
		return state.Workspace{}, fmt.Errorf("workspace %q: %w", workspaceID, types.ErrInvalidID)
	}
	if err := us.seed(r.Context(), s.gateway); err != nil {
		return state.Workspace{}, err
	}
	ws, ok := us.session.Store().FindWorkspace(workspaceID)
	if !ok {
		return state.Workspace{}, fmt.Errorf("workspace %s: %w", workspaceID, types.ErrNotFound)
	}
	return ws, nil
}
