package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cypress/internal/membership"
	"github.com/mesh-intelligence/cypress/internal/paths"
	"github.com/mesh-intelligence/cypress/internal/sqlite"
	"github.com/mesh-intelligence/cypress/internal/sqlstore"
	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// testEnv is an isolated config and data directory pair.
type testEnv struct {
	t         *testing.T
	configDir string
	dataDir   string
}

type cmdResult struct {
	stdout   string
	stderr   string
	exitCode int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	t.Setenv(paths.EnvConfigDir, "")
	t.Setenv(paths.EnvDataDir, "")
	return &testEnv{
		t:         t,
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "data"),
	}
}

// run executes cypress in-process with the environment's directories.
func (e *testEnv) run(stdin string, args ...string) cmdResult {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	res := cmdResult{}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(&stderr, "cypress:", err)
		res.exitCode = exitCode(err)
	}
	res.stdout, res.stderr = stdout.String(), stderr.String()
	return res
}

func (e *testEnv) mustRun(args ...string) cmdResult {
	e.t.Helper()
	res := e.run("", args...)
	require.Equal(e.t, exitSuccess, res.exitCode, "cypress %v\nstderr: %s", args, res.stderr)
	return res
}

func parseJSON[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}

// seedUser creates a user and returns it.
func (e *testEnv) seedUser(email string) types.User {
	e.t.Helper()
	return parseJSON[types.User](e.t, e.mustRun("--json", "user", "create", email, "--name", "Test "+email).stdout)
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun("version").stdout
	assert.Contains(t, out, "cypress v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInitCreatesConfigAndDatabase(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun("init").stdout

	assert.Contains(t, out, "cypress initialized successfully")
	assert.FileExists(t, paths.ConfigFile(env.configDir))
	assert.FileExists(t, filepath.Join(env.dataDir, sqlite.DBFile))

	cfg, err := os.ReadFile(paths.ConfigFile(env.configDir))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "backend: sqlite")
	assert.Contains(t, string(cfg), "listen_addr: :8080")
}

func TestUserCommands(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser("Ada@Example.com")
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEmpty(t, u.ID)

	dup := env.run("", "user", "create", "ada@example.com")
	assert.Equal(t, exitUserError, dup.exitCode)
	assert.Contains(t, dup.stderr, types.ErrDuplicate.Error())

	assert.Contains(t, env.mustRun("user", "get", "ada@example.com").stdout, "free")

	bad := env.run("", "user", "subscribe", "ada@example.com", "gold")
	assert.Equal(t, exitUserError, bad.exitCode)

	env.mustRun("user", "subscribe", "ada@example.com", "active")
	assert.Contains(t, env.mustRun("user", "get", "ada@example.com").stdout, "paid")

	missing := env.run("", "user", "get", "nobody@example.com")
	assert.Equal(t, exitUserError, missing.exitCode)
}

func TestWorkspaceRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	res := env.run("", "workspace", "list")
	assert.Equal(t, exitUserError, res.exitCode)
	assert.Contains(t, res.stderr, "--user is required")
}

func TestWorkspaceFolderFileFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("owner@example.com")
	as := []string{"--user", "owner@example.com"}
	run := func(args ...string) cmdResult { return env.mustRun(append(args, as...)...) }

	ws := parseJSON[types.Workspace](t, run("--json", "workspace", "create", "Notes", "--icon", "📒").stdout)
	assert.Equal(t, "Notes", ws.Title)
	assert.Equal(t, "📒", ws.IconID)

	m := parseJSON[membership.Memberships](t, run("--json", "workspace", "list").stdout)
	require.Len(t, m.Private, 1)
	assert.Empty(t, m.Shared)

	var folders []types.Folder
	for _, title := range []string{"Inbox", "Archive", ""} {
		folders = append(folders, parseJSON[types.Folder](t, run("--json", "folder", "create", ws.ID, title).stdout))
	}
	assert.Equal(t, "Untitled", folders[2].Title)

	limit := env.run("", append([]string{"folder", "create", ws.ID, "Fourth"}, as...)...)
	assert.Equal(t, exitUserError, limit.exitCode)
	assert.Contains(t, limit.stderr, types.ErrFolderLimit.Error())

	usage := parseJSON[struct {
		Folders int  `json:"folders"`
		Limit   int  `json:"limit"`
		Free    bool `json:"free"`
	}](t, run("--json", "workspace", "usage", ws.ID).stdout)
	assert.Equal(t, 3, usage.Folders)
	assert.Equal(t, types.MaxFoldersFreePlan, usage.Limit)
	assert.True(t, usage.Free)

	env.mustRun("user", "subscribe", "owner@example.com", "active")
	run("folder", "create", ws.ID, "Fourth")

	run("folder", "rename", ws.ID, folders[1].ID, "Old stuff")
	run("folder", "trash", ws.ID, folders[2].ID)
	listed := parseJSON[[]types.Folder](t, run("--json", "folder", "list", ws.ID).stdout)
	require.Len(t, listed, 4)
	assert.Equal(t, "Old stuff", listed[1].Title)
	assert.Equal(t, "Deleted by owner@example.com", listed[2].InTrash)
	run("folder", "restore", ws.ID, folders[2].ID)

	file := parseJSON[types.File](t, run("--json", "file", "create", ws.ID, folders[0].ID, "Todo").stdout)
	run("file", "rename", ws.ID, folders[0].ID, file.ID, "Done")
	run("file", "move", ws.ID, folders[0].ID, file.ID, "--to", folders[1].ID)

	tree := parseJSON[state.State](t, run("--json", "tree", ws.ID).stdout)
	require.Len(t, tree.Workspaces, 1)
	w := tree.Workspaces[0]
	require.Len(t, w.Folders, 4)
	assert.Empty(t, w.Folders[0].Files)
	require.Len(t, w.Folders[1].Files, 1)
	assert.Equal(t, "Done", w.Folders[1].Files[0].Title)
	assert.Empty(t, w.Folders[2].InTrash)

	text := run("tree").stdout
	assert.Contains(t, text, "Notes")
	assert.Contains(t, text, "    📄 Done")

	run("file", "delete", ws.ID, folders[1].ID, file.ID)
	assert.Equal(t, "[]", strings.TrimSpace(run("--json", "file", "list", folders[1].ID).stdout))

	run("folder", "delete", ws.ID, folders[0].ID)
	run("workspace", "delete", ws.ID)
	m = parseJSON[membership.Memberships](t, run("--json", "workspace", "list").stdout)
	assert.Empty(t, m.Private)
}

func TestWorkspaceSharing(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("owner@example.com")
	guest := env.seedUser("guest@example.com")

	ws := parseJSON[types.Workspace](t, env.mustRun("--json", "workspace", "create", "Team",
		"--share", "guest@example.com", "--user", "owner@example.com").stdout)

	m := parseJSON[membership.Memberships](t, env.mustRun("--json", "workspace", "list", "--user", "guest@example.com").stdout)
	require.Len(t, m.Collaborating, 1)
	assert.Equal(t, ws.ID, m.Collaborating[0].ID)

	denied := env.run("", "workspace", "unshare", ws.ID, "guest@example.com", "--user", "guest@example.com")
	assert.Equal(t, exitUserError, denied.exitCode)
	assert.Contains(t, denied.stderr, types.ErrNotOwner.Error())

	left := parseJSON[[]types.User](t, env.mustRun("--json", "workspace", "unshare", ws.ID, "guest@example.com",
		"--user", "owner@example.com").stdout)
	assert.Empty(t, left)

	hidden := env.run("", "folder", "list", ws.ID, "--user", "guest@example.com")
	assert.Equal(t, exitUserError, hidden.exitCode)

	back := parseJSON[[]types.User](t, env.mustRun("--json", "workspace", "share", ws.ID, "guest@example.com",
		"--user", "owner@example.com").stdout)
	require.Len(t, back, 1)
	assert.Equal(t, guest.ID, back[0].ID)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("owner@example.com")
	env.seedUser("ann@example.com")
	env.seedUser("andy@example.com")
	env.seedUser("bob@example.com")

	r := parseJSON[searchResult](t, env.mustRun("--json", "search", "an", "--user", "owner@example.com").stdout)
	require.Len(t, r.Users, 2)
	assert.Equal(t, "andy@example.com", r.Users[0].Email)

	self := parseJSON[searchResult](t, env.mustRun("--json", "search", "owner", "--user", "owner@example.com").stdout)
	assert.Empty(t, self.Users)

	ws := parseJSON[types.Workspace](t, env.mustRun("--json", "workspace", "create", "Team",
		"--share", "ann@example.com", "--user", "owner@example.com").stdout)
	shared := parseJSON[searchResult](t, env.mustRun("--json", "search", "an", "--workspace", ws.ID,
		"--user", "owner@example.com").stdout)
	require.Len(t, shared.Users, 1)
	assert.Equal(t, "andy@example.com", shared.Users[0].Email)

	both := env.run("", "search", "an", "--stdin", "--user", "owner@example.com")
	assert.Equal(t, exitUserError, both.exitCode)

	outsider := env.run("", "search", "an", "--workspace", ws.ID, "--user", "bob@example.com")
	assert.Equal(t, exitUserError, outsider.exitCode)
	assert.Contains(t, outsider.stderr, types.ErrNotFound.Error())
}

func TestForeignIDsUnderOwnWorkspace(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("ann@example.com")
	env.seedUser("mal@example.com")
	ann := []string{"--user", "ann@example.com"}
	mal := []string{"--user", "mal@example.com"}
	create := func(as []string, title string) (types.Workspace, types.Folder, types.File) {
		ws := parseJSON[types.Workspace](t, env.mustRun(append([]string{"--json", "workspace", "create", title}, as...)...).stdout)
		folder := parseJSON[types.Folder](t, env.mustRun(append([]string{"--json", "folder", "create", ws.ID, title}, as...)...).stdout)
		file := parseJSON[types.File](t, env.mustRun(append([]string{"--json", "file", "create", ws.ID, folder.ID, title}, as...)...).stdout)
		return ws, folder, file
	}
	_, annFolder, annFile := create(ann, "Diary")
	malWS, malFolder, _ := create(mal, "Scratch")

	for _, args := range [][]string{
		{"file", "delete", malWS.ID, malFolder.ID, annFile.ID},
		{"file", "rename", malWS.ID, malFolder.ID, annFile.ID, "Mine now"},
		{"file", "trash", malWS.ID, malFolder.ID, annFile.ID},
		{"file", "move", malWS.ID, annFolder.ID, annFile.ID, "--to", malFolder.ID},
		{"folder", "delete", malWS.ID, annFolder.ID},
		{"folder", "rename", malWS.ID, annFolder.ID, "Mine now"},
	} {
		t.Run(strings.Join(args[:2], " "), func(t *testing.T) {
			res := env.run("", append(args, mal...)...)
			assert.Equal(t, exitUserError, res.exitCode, res.stdout)
			assert.Contains(t, res.stderr, types.ErrNotFound.Error())
		})
	}

	files := parseJSON[[]types.File](t, env.mustRun("--json", "file", "list", annFolder.ID).stdout)
	require.Len(t, files, 1)
	assert.Equal(t, "Diary", files[0].Title)
	assert.Empty(t, files[0].InTrash)
}

func TestSearchStdinLooksUpLastTerm(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("owner@example.com")
	env.seedUser("bob@example.com")
	env.seedUser("bea@example.com")
	t.Setenv("CYPRESS_SEARCH_DEBOUNCE", "20ms")

	res := env.run("b\nbo\nbob\n", "search", "--stdin", "--user", "owner@example.com")
	require.Equal(t, exitSuccess, res.exitCode, res.stderr)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "bob@example.com")
}

func TestExportImport(t *testing.T) {
	src := newTestEnv(t)
	src.seedUser("owner@example.com")
	ws := parseJSON[types.Workspace](t, src.mustRun("--json", "workspace", "create", "Notes", "--user", "owner@example.com").stdout)
	src.mustRun("folder", "create", ws.ID, "Inbox", "--user", "owner@example.com")

	dir := t.TempDir()
	type countsOut struct {
		Counts sqlstore.Counts `json:"counts"`
		Total  int             `json:"total"`
	}
	exported := parseJSON[countsOut](t, src.mustRun("--json", "export", dir).stdout)
	assert.Equal(t, 1, exported.Counts["users"])
	assert.Equal(t, 1, exported.Counts["workspaces"])
	assert.Equal(t, 1, exported.Counts["folders"])
	assert.FileExists(t, filepath.Join(dir, "users.jsonl"))

	dst := newTestEnv(t)
	imported := parseJSON[countsOut](t, dst.mustRun("--json", "import", dir).stdout)
	assert.Equal(t, exported.Total, imported.Total)

	again := parseJSON[countsOut](t, dst.mustRun("--json", "import", dir).stdout)
	assert.Zero(t, again.Total)

	tree := parseJSON[state.State](t, dst.mustRun("--json", "tree", "--user", "owner@example.com").stdout)
	require.Len(t, tree.Workspaces, 1)
	require.Len(t, tree.Workspaces[0].Folders, 1)
	assert.Equal(t, "Inbox", tree.Workspaces[0].Folders[0].Title)

	missing := dst.run("", "import", filepath.Join(dir, "nope"))
	assert.Equal(t, exitSysError, missing.exitCode)
}

func TestBadFlagsAndArgsAreUserErrors(t *testing.T) {
	env := newTestEnv(t)
	for _, args := range [][]string{
		{"workspace", "create"},
		{"--no-such-flag"},
		{"--backend", "mongo", "init"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			assert.Equal(t, exitUserError, env.run("", args...).exitCode)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"explicit user", userError(errors.New("x")), exitUserError},
		{"explicit system", sysError(types.ErrNotFound), exitSysError},
		{"not found", fmt.Errorf("user: %w", types.ErrNotFound), exitUserError},
		{"folder limit", types.ErrFolderLimit, exitUserError},
		{"not owner", types.ErrNotOwner, exitUserError},
		{"invalid id", types.ErrInvalidID, exitUserError},
		{"detached", types.ErrBackendDetached, exitSysError},
		{"plain", errors.New("disk on fire"), exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestArgsRule(t *testing.T) {
	rule := argsRule(cobra.ExactArgs(1))
	assert.NoError(t, rule(&cobra.Command{}, []string{"a"}))
	err := rule(&cobra.Command{}, nil)
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
		wantJSON      bool
	}{
		{"", "", false, false},
		{"debug", "text", false, false},
		{"WARN", "json", false, true},
		{"loud", "text", true, false},
		{"info", "xml", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Error("hello")
			if tt.wantJSON {
				assert.True(t, strings.HasPrefix(buf.String(), "{"))
			} else {
				assert.Contains(t, buf.String(), "msg=hello")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults written on first run", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "cfg")
		v, err := loadConfig(dir)
		require.NoError(t, err)
		s := settingsFrom(v)
		assert.Equal(t, types.BackendSQLite, s.Backend)
		assert.Equal(t, defaultListenAddr, s.ListenAddr)
		assert.Equal(t, defaultLogLevel, s.LogLevel)
		assert.Equal(t, "450ms", s.SearchDebounce.String())
		assert.FileExists(t, paths.ConfigFile(dir))
	})

	t.Run("existing file is kept", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(paths.ConfigFile(dir), []byte("backend: postgres\nlisten_addr: \":9000\"\n"), 0o644))
		v, err := loadConfig(dir)
		require.NoError(t, err)
		s := settingsFrom(v)
		assert.Equal(t, types.BackendPostgres, s.Backend)
		assert.Equal(t, ":9000", s.ListenAddr)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("CYPRESS_LOG_LEVEL", "debug")
		t.Setenv("CYPRESS_SEARCH_DEBOUNCE", "1s")
		v, err := loadConfig(dir)
		require.NoError(t, err)
		s := settingsFrom(v)
		assert.Equal(t, "debug", s.LogLevel)
		assert.Equal(t, "1s", s.SearchDebounce.String())
	})

	t.Run("malformed file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(paths.ConfigFile(dir), []byte("backend: [unclosed\n"), 0o644))
		_, err := loadConfig(dir)
		assert.Error(t, err)
	})
}

func TestBackendConfig(t *testing.T) {
	tests := []struct {
		name        string
		flags       rootFlags
		settings    settings
		wantBackend string
		wantDSN     string
	}{
		{"default sqlite", rootFlags{dataDir: "/tmp/d"}, settings{Backend: types.BackendSQLite}, types.BackendSQLite, ""},
		{"dsn infers backend", rootFlags{}, settings{Backend: types.BackendSQLite, DSN: "postgres://u@h/db"}, "", "postgres://u@h/db"},
		{"explicit postgres", rootFlags{backend: "postgres"}, settings{Backend: types.BackendPostgres, DSN: "postgres://u@h/db"}, types.BackendPostgres, "postgres://u@h/db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{flags: tt.flags, settings: tt.settings}
			cfg, err := a.backendConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.wantBackend, cfg.Backend)
			assert.Equal(t, tt.wantDSN, cfg.DSN)
			if tt.wantBackend == types.BackendSQLite {
				assert.Equal(t, "/tmp/d", cfg.DataDir)
			}
		})
	}
}
