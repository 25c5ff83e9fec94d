package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cypress/internal/dashboard"
	"github.com/mesh-intelligence/cypress/internal/sqlite"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

type harness struct {
	t       *testing.T
	server  *Server
	backend *sqlite.Backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	s := NewServer(b, nil, Config{})
	t.Cleanup(func() {
		s.Close()
		b.Detach()
	})
	return &harness{t: t, server: s, backend: b}
}

func (h *harness) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func (h *harness) user(email string) types.User {
	h.t.Helper()
	u := types.User{ID: types.NewID(), Email: email}
	require.NoError(h.t, h.backend.CreateUser(context.Background(), u))
	return u
}

// login signs email in and returns the session cookie.
func (h *harness) login(email string) *http.Cookie {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/login", map[string]string{"email": email}, nil)
	require.Equal(h.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	return sessionCookie(h.t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookie)
	return nil
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *string         `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.Nil(t, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *string         `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "null", string(env.Data))
	return *env.Error
}

func TestRedirectRules(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	cookie := h.login("ann@example.com")

	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		wantCode int
		wantLoc  string
	}{
		{"dashboard needs session", "/dashboard", nil, http.StatusSeeOther, "/login"},
		{"nested dashboard needs session", "/dashboard/" + types.NewID() + "/x", nil, http.StatusSeeOther, "/login"},
		{"login page when signed out", "/login", nil, http.StatusOK, ""},
		{"login redirects when signed in", "/login", cookie, http.StatusSeeOther, "/dashboard"},
		{"signup redirects when signed in", "/signup", cookie, http.StatusSeeOther, "/dashboard"},
		{"home is public", "/", nil, http.StatusOK, ""},
		{
			"expired email link goes to signup", "/?error_description=" + url.QueryEscape(EmailLinkError), nil,
			http.StatusSeeOther, "/signup?error_description=" + url.QueryEscape(EmailLinkError),
		},
		{"expired email link stays on signup", "/signup?error_description=" + url.QueryEscape(EmailLinkError), nil, http.StatusOK, ""},
		{"other error descriptions pass", "/login?error_description=nope", nil, http.StatusOK, ""},
		{"unknown cookie is signed out", "/dashboard", &http.Cookie{Name: SessionCookie, Value: "bogus"}, http.StatusSeeOther, "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodGet, tt.path, nil, tt.cookie)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
}

func TestAPIRequiresSession(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/workspaces", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not signed in", decodeError(t, rec))
}

func TestLoginUnknownEmail(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/login", map[string]string{"email": "ghost@example.com"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/login", map[string]string{"email": "no-at-sign"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginAcceptsForm(t *testing.T) {
	h := newHarness(t)
	h.user("form@example.com")

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=FORM%40example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotNil(t, sessionCookie(t, rec))
}

func TestSignupAndCallback(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/signup", map[string]string{"email": "new@example.com", "fullName": "New User"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		User       types.User `json:"user"`
		ConfirmURL string     `json:"confirmUrl"`
	}
	decodeData(t, rec, &out)
	assert.Equal(t, "new@example.com", out.User.Email)
	require.True(t, strings.HasPrefix(out.ConfirmURL, "/api/auth/callback?code="))

	rec = h.do(http.MethodGet, out.ConfirmURL, nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	cookie := sessionCookie(t, rec)

	rec = h.do(http.MethodGet, "/api/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	// codes are single use
	rec = h.do(http.MethodGet, out.ConfirmURL, nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = h.do(http.MethodPost, "/signup", map[string]string{"email": "new@example.com"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDashboardSetupAndRedirect(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	cookie := h.login("ann@example.com")

	rec := h.do(http.MethodGet, "/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var setup struct {
		Setup bool `json:"setup"`
	}
	decodeData(t, rec, &setup)
	assert.True(t, setup.Setup)

	rec = h.do(http.MethodPost, "/api/workspaces", map[string]any{"title": "Notes"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ws types.Workspace
	decodeData(t, rec, &ws)

	rec = h.do(http.MethodGet, "/dashboard", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/"+ws.ID, rec.Header().Get("Location"))
}

func TestWorkspaceFolderFileFlow(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	cookie := h.login("ann@example.com")

	rec := h.do(http.MethodPost, "/api/workspaces", map[string]any{"title": "Notes"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ws types.Workspace
	decodeData(t, rec, &ws)
	base := "/api/workspaces/" + ws.ID

	rec = h.do(http.MethodPost, base+"/folders", map[string]string{"title": "Ideas"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var folder types.Folder
	decodeData(t, rec, &folder)

	rec = h.do(http.MethodPost, base+"/folders", map[string]string{"title": "Archive"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var archive types.Folder
	decodeData(t, rec, &archive)

	rec = h.do(http.MethodPost, base+"/folders/"+folder.ID+"/files", map[string]string{"title": "Draft"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var file types.File
	decodeData(t, rec, &file)

	rec = h.do(http.MethodGet, "/dashboard/"+ws.ID+"/"+folder.ID+"/"+file.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view struct {
		Route struct {
			WorkspaceID string `json:"workspaceId"`
			FolderID    string `json:"folderId"`
			FileID      string `json:"fileId"`
		} `json:"route"`
		Folder struct {
			Files []types.File `json:"files"`
		} `json:"folder"`
		File types.File `json:"file"`
	}
	decodeData(t, rec, &view)
	assert.Equal(t, ws.ID, view.Route.WorkspaceID)
	assert.Equal(t, folder.ID, view.Route.FolderID)
	assert.Equal(t, file.ID, view.Route.FileID)
	assert.Len(t, view.Folder.Files, 1)
	assert.Equal(t, "Draft", view.File.Title)

	rec = h.do(http.MethodPatch, base+"/folders/"+folder.ID+"/files/"+file.ID, map[string]string{"title": "Final"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &file)
	assert.Equal(t, "Final", file.Title)

	rec = h.do(http.MethodPost, base+"/folders/"+folder.ID+"/files/"+file.ID+"/trash", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &file)
	assert.Equal(t, "Deleted by ann@example.com", file.InTrash)

	rec = h.do(http.MethodPost, base+"/folders/"+folder.ID+"/files/"+file.ID+"/move", map[string]string{"folderId": archive.ID}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &file)
	assert.Equal(t, archive.ID, file.FolderID)

	rec = h.do(http.MethodGet, base+"/folders/"+archive.ID+"/files", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var files []types.File
	decodeData(t, rec, &files)
	require.Len(t, files, 1)
	assert.Equal(t, file.ID, files[0].ID)

	rec = h.do(http.MethodDelete, base+"/folders/"+archive.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, base+"/folders", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var folders []types.Folder
	decodeData(t, rec, &folders)
	require.Len(t, folders, 1)
	assert.Equal(t, folder.ID, folders[0].ID)

	rec = h.do(http.MethodGet, base+"/usage", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var usage dashboard.Usage
	decodeData(t, rec, &usage)
	assert.True(t, usage.Free)
	assert.Equal(t, 1, usage.Folders)
}

func TestFolderLimitReturnsPaymentRequired(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	cookie := h.login("ann@example.com")

	rec := h.do(http.MethodPost, "/api/workspaces", map[string]any{"title": "Notes"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ws types.Workspace
	decodeData(t, rec, &ws)

	for i := 0; i < types.MaxFoldersFreePlan; i++ {
		rec = h.do(http.MethodPost, "/api/workspaces/"+ws.ID+"/folders", map[string]string{}, cookie)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec = h.do(http.MethodPost, "/api/workspaces/"+ws.ID+"/folders", map[string]string{}, cookie)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, types.ErrFolderLimit.Error(), decodeError(t, rec))
}

func TestSharingAndSearch(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	bob := h.user("bob@example.com")
	h.user("bea@example.com")
	ann := h.login("ann@example.com")

	rec := h.do(http.MethodPost, "/api/workspaces", map[string]any{
		"title":           "Team",
		"permission":      "shared",
		"collaboratorIds": []string{bob.ID},
	}, ann)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ws types.Workspace
	decodeData(t, rec, &ws)

	rec = h.do(http.MethodGet, "/api/users/search?q=b&workspaceId="+ws.ID, nil, ann)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []types.User
	decodeData(t, rec, &found)
	require.Len(t, found, 1)
	assert.Equal(t, "bea@example.com", found[0].Email)

	bobCookie := h.login("bob@example.com")
	rec = h.do(http.MethodGet, "/api/workspaces", nil, bobCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var m struct {
		Collaborating []types.Workspace `json:"collaborating"`
	}
	decodeData(t, rec, &m)
	require.Len(t, m.Collaborating, 1)
	assert.Equal(t, ws.ID, m.Collaborating[0].ID)

	rec = h.do(http.MethodDelete, "/api/workspaces/"+ws.ID, nil, bobCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodDelete, "/api/workspaces/"+ws.ID+"/collaborators/"+bob.ID, nil, ann)
	require.Equal(t, http.StatusOK, rec.Code)
	var left []types.User
	decodeData(t, rec, &left)
	assert.Empty(t, left)
}

func TestWorkspaceAccess(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	h.user("eve@example.com")
	ann := h.login("ann@example.com")
	eve := h.login("eve@example.com")

	rec := h.do(http.MethodPost, "/api/workspaces", map[string]any{"title": "Private"}, ann)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ws types.Workspace
	decodeData(t, rec, &ws)

	rec = h.do(http.MethodGet, "/api/workspaces/"+ws.ID+"/folders", nil, eve)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/workspaces/not-a-uuid/folders", nil, ann)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/dashboard/"+ws.ID, nil, eve)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForeignFileUnderOwnFolder(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	h.user("mal@example.com")
	ann := h.login("ann@example.com")
	mal := h.login("mal@example.com")

	create := func(cookie *http.Cookie, title string) (types.Workspace, types.Folder, types.File) {
		rec := h.do(http.MethodPost, "/api/workspaces", map[string]any{"title": title}, cookie)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var ws types.Workspace
		decodeData(t, rec, &ws)
		rec = h.do(http.MethodPost, "/api/workspaces/"+ws.ID+"/folders", map[string]string{"title": title}, cookie)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var folder types.Folder
		decodeData(t, rec, &folder)
		rec = h.do(http.MethodPost, "/api/workspaces/"+ws.ID+"/folders/"+folder.ID+"/files", map[string]string{"title": title}, cookie)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var file types.File
		decodeData(t, rec, &file)
		return ws, folder, file
	}
	_, annFolder, annFile := create(ann, "Diary")
	malWS, malFolder, _ := create(mal, "Scratch")

	malFile := "/api/workspaces/" + malWS.ID + "/folders/" + malFolder.ID + "/files/" + annFile.ID
	malForeignFolder := "/api/workspaces/" + malWS.ID + "/folders/" + annFolder.ID
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"delete file", http.MethodDelete, malFile, nil},
		{"rename file", http.MethodPatch, malFile, map[string]string{"title": "Mine now"}},
		{"trash file", http.MethodPost, malFile + "/trash", nil},
		{"move file", http.MethodPost, malFile + "/move", map[string]string{"folderId": malFolder.ID}},
		{"delete folder", http.MethodDelete, malForeignFolder, nil},
		{"rename folder", http.MethodPatch, malForeignFolder, map[string]string{"title": "Mine now"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(tt.method, tt.path, tt.body, mal)
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

			files, err := h.backend.GetFiles(context.Background(), annFolder.ID)
			require.NoError(t, err)
			require.Len(t, files, 1)
			assert.Equal(t, annFile.ID, files[0].ID)
			assert.Equal(t, "Diary", files[0].Title)
			assert.False(t, files[0].Trashed())
		})
	}
}

func TestUserSearchRequiresMembership(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	bob := h.user("bob@example.com")
	h.user("eve@example.com")
	ann := h.login("ann@example.com")
	eve := h.login("eve@example.com")

	rec := h.do(http.MethodPost, "/api/workspaces", map[string]any{
		"title":           "Team",
		"permission":      "shared",
		"collaboratorIds": []string{bob.ID},
	}, ann)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ws types.Workspace
	decodeData(t, rec, &ws)

	rec = h.do(http.MethodGet, "/api/users/search?q=b&workspaceId="+ws.ID, nil, eve)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/users/search?q=b", nil, eve)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []types.User
	decodeData(t, rec, &found)
	require.Len(t, found, 1)
	assert.Equal(t, bob.ID, found[0].ID)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.user("ann@example.com")
	cookie := h.login("ann@example.com")

	rec := h.do(http.MethodPost, "/api/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/dashboard", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{types.ErrInvalidID, http.StatusBadRequest},
		{types.ErrNoCollaborators, http.StatusBadRequest},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrDuplicate, http.StatusConflict},
		{types.ErrNotOwner, http.StatusForbidden},
		{types.ErrFolderLimit, http.StatusPaymentRequired},
		{types.ErrBackendDetached, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
