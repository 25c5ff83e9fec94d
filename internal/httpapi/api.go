package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/cypress/internal/dashboard"
	"github.com/mesh-intelligence/cypress/internal/membership"
	"github.com/mesh-intelligence/cypress/internal/search"
	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

type titleRequest struct {
	Title string `json:"title"`
}

type userIDsRequest struct {
	UserIDs []string `json:"userIds"`
}

type moveRequest struct {
	FolderID string `json:"folderId"`
}

// scope is the workspace, and optionally folder and file, named by the URL.
type scope struct {
	us          *userSession
	workspaceID string
	folderID    string
	fileID      string
}

// resolve checks membership for the workspace in the URL and, when present,
// that the folder belongs to it. The dashboard service checks that a file
// id sits in the folder before it writes.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (scope, bool) {
	us, _ := userFrom(r.Context())
	sc := scope{
		us:          us,
		workspaceID: chi.URLParam(r, "workspaceId"),
		folderID:    chi.URLParam(r, "folderId"),
		fileID:      chi.URLParam(r, "fileId"),
	}
	if _, err := s.member(r, us, sc.workspaceID); err != nil {
		s.writeErr(w, r, err)
		return sc, false
	}
	if sc.folderID == "" {
		return sc, true
	}
	if _, ok := us.session.Store().FindFolder(sc.workspaceID, sc.folderID); !ok {
		if _, err := us.service.LoadFolders(r.Context(), sc.workspaceID); err != nil {
			s.writeErr(w, r, err)
			return sc, false
		}
		if _, ok := us.session.Store().FindFolder(sc.workspaceID, sc.folderID); !ok {
			s.writeErr(w, r, fmt.Errorf("folder %s: %w", sc.folderID, types.ErrNotFound))
			return sc, false
		}
	}
	return sc, true
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	us, _ := userFrom(r.Context())
	sub, err := s.gateway.GetUserSubscriptionStatus(r.Context(), us.user.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": us.user, "subscription": sub})
}

// handleUserSearch finds users by email prefix for the collaborator picker.
// The caller and, with workspaceId, that workspace's collaborators are left
// out.
func (s *Server) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	us, _ := userFrom(r.Context())
	q := r.URL.Query()
	found, err := s.gateway.GetUsersFromSearch(r.Context(), q.Get("q"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var existing []types.User
	if wsID := q.Get("workspaceId"); wsID != "" {
		if _, err := s.member(r, us, wsID); err != nil {
			s.writeErr(w, r, err)
			return
		}
		existing, err = s.gateway.GetCollaborators(r.Context(), wsID)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, search.Filter(found, us.user.ID, existing))
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	us, _ := userFrom(r.Context())
	m, err := membership.Resolve(r.Context(), s.gateway, us.user.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type createWorkspaceRequest struct {
	Title           string               `json:"title"`
	IconID          string               `json:"iconId"`
	Logo            *string              `json:"logo,omitempty"`
	Permission      dashboard.Permission `json:"permission"`
	CollaboratorIDs []string             `json:"collaboratorIds"`
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	us, _ := userFrom(r.Context())
	var req createWorkspaceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := us.seed(r.Context(), s.gateway); err != nil {
		s.writeErr(w, r, err)
		return
	}
	collaborators, err := s.users(r, req.CollaboratorIDs)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	ws, err := us.service.CreateWorkspace(r.Context(), us.user, dashboard.WorkspaceInput{
		Title:         req.Title,
		IconID:        req.IconID,
		Logo:          req.Logo,
		Permission:    req.Permission,
		Collaborators: collaborators,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var patch types.WorkspacePatch
	if !s.decode(w, r, &patch) {
		return
	}
	if err := sc.us.service.UpdateWorkspace(r.Context(), sc.workspaceID, patch); err != nil {
		s.writeErr(w, r, err)
		return
	}
	ws, _ := sc.us.session.Store().FindWorkspace(sc.workspaceID)
	writeJSON(w, http.StatusOK, ws.Workspace)
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if err := sc.us.service.DeleteWorkspace(r.Context(), sc.us.user, sc.workspaceID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": sc.workspaceID})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	sub, err := s.gateway.GetUserSubscriptionStatus(r.Context(), sc.us.user.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if _, err := sc.us.service.LoadFolders(r.Context(), sc.workspaceID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc.us.service.PlanUsage(sub, sc.workspaceID))
}

func (s *Server) handleListCollaborators(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	users, err := s.gateway.GetCollaborators(r.Context(), sc.workspaceID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleAddCollaborators(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var req userIDsRequest
	if !s.decode(w, r, &req) {
		return
	}
	users, err := s.users(r, req.UserIDs)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := sc.us.service.AddCollaborators(r.Context(), sc.us.user, sc.workspaceID, users); err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.handleListCollaborators(w, r)
}

func (s *Server) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	users, err := s.users(r, []string{chi.URLParam(r, "userId")})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := sc.us.service.RemoveCollaborators(r.Context(), sc.us.user, sc.workspaceID, users); err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.handleListCollaborators(w, r)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	folders, err := sc.us.service.LoadFolders(r.Context(), sc.workspaceID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var req titleRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := sc.us.service.CreateFolder(r.Context(), sc.us.user, sc.workspaceID, req.Title)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var patch types.ItemPatch
	if !s.decode(w, r, &patch) {
		return
	}
	s.folderResult(w, r, sc, sc.us.service.UpdateFolder(r.Context(), sc.workspaceID, sc.folderID, patch))
}

func (s *Server) handleTrashFolder(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	s.folderResult(w, r, sc, sc.us.service.TrashFolder(r.Context(), sc.us.user, sc.workspaceID, sc.folderID))
}

func (s *Server) handleRestoreFolder(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	s.folderResult(w, r, sc, sc.us.service.RestoreFolder(r.Context(), sc.workspaceID, sc.folderID))
}

func (s *Server) folderResult(w http.ResponseWriter, r *http.Request, sc scope, err error) {
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	f, _ := sc.us.session.Store().FindFolder(sc.workspaceID, sc.folderID)
	writeJSON(w, http.StatusOK, f.Folder)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if err := sc.us.service.DeleteFolder(r.Context(), sc.workspaceID, sc.folderID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": sc.folderID})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	files, err := s.gateway.GetFiles(r.Context(), sc.folderID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	sc.us.session.Store().Dispatch(state.SetFiles{WorkspaceID: sc.workspaceID, FolderID: sc.folderID, Files: files})
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var req titleRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := sc.us.service.CreateFile(r.Context(), sc.workspaceID, sc.folderID, req.Title)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var patch types.ItemPatch
	if !s.decode(w, r, &patch) {
		return
	}
	s.fileResult(w, r, sc, sc.folderID, sc.us.service.UpdateFile(r.Context(), sc.workspaceID, sc.folderID, sc.fileID, patch))
}

func (s *Server) handleTrashFile(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	s.fileResult(w, r, sc, sc.folderID, sc.us.service.TrashFile(r.Context(), sc.us.user, sc.workspaceID, sc.folderID, sc.fileID))
}

func (s *Server) handleRestoreFile(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	s.fileResult(w, r, sc, sc.folderID, sc.us.service.RestoreFile(r.Context(), sc.workspaceID, sc.folderID, sc.fileID))
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := sc.us.service.MoveFile(r.Context(), sc.workspaceID, sc.folderID, req.FolderID, sc.fileID)
	s.fileResult(w, r, sc, req.FolderID, err)
}

// fileResult answers with the file as the store now holds it in folderID,
// or the persisted row when the folder's files were never loaded.
func (s *Server) fileResult(w http.ResponseWriter, r *http.Request, sc scope, folderID string, err error) {
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if f, ok := sc.us.session.Store().FindFile(sc.workspaceID, folderID, sc.fileID); ok {
		writeJSON(w, http.StatusOK, f)
		return
	}
	files, err := s.gateway.GetFiles(r.Context(), folderID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	for _, f := range files {
		if f.ID == sc.fileID {
			writeJSON(w, http.StatusOK, f)
			return
		}
	}
	s.writeErr(w, r, fmt.Errorf("file %s: %w", sc.fileID, types.ErrNotFound))
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if err := sc.us.service.DeleteFile(r.Context(), sc.workspaceID, sc.folderID, sc.fileID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": sc.fileID})
}

// users loads the users with the given ids.
func (s *Server) users(r *http.Request, ids []string) ([]types.User, error) {
	out := make([]types.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.gateway.GetUser(r.Context(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}
