// Package cli implements the cypress command-line interface.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/backend"
	"github.com/mesh-intelligence/cypress/internal/paths"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	dsn       string
	jsonMode  bool
}

// app is the state shared by one invocation's commands.
type app struct {
	flags     rootFlags
	configDir string
	settings  settings
	logger    *slog.Logger
}

// NewRootCmd creates the top-level "cypress" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cypress",
		Short: "Collaborative workspaces of folders and notes",
		Long: "Cypress serves a collaborative note-taking dashboard: workspaces hold\n" +
			"folders, folders hold files, and workspaces can be shared with collaborators.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd)
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return userError(err) })

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $CYPRESS_CONFIG_DIR)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "sqlite data directory (default: $(CWD)/.cypress-db)")
	pf.StringVar(&a.flags.backend, "backend", "", "storage backend: sqlite or postgres")
	pf.StringVar(&a.flags.dsn, "dsn", "", "database connection string")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newServeCmd(a),
		newUserCmd(a),
		newWorkspaceCmd(a),
		newFolderCmd(a),
		newFileCmd(a),
		newTreeCmd(a),
		newSearchCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cypress:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// load resolves the config directory, reads config.yaml, applies flag
// overrides and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolving config dir: %w", err))
	}
	v, err := loadConfig(dir)
	if err != nil {
		return sysError(err)
	}
	a.configDir = dir
	a.settings = settingsFrom(v)
	if a.flags.backend != "" {
		a.settings.Backend = a.flags.backend
	}
	if a.flags.dsn != "" {
		a.settings.DSN = a.flags.dsn
	}

	a.logger, err = newLogger(cmd.ErrOrStderr(), a.settings.LogLevel, a.settings.LogFormat)
	if err != nil {
		return userError(err)
	}
	return nil
}

// backendConfig turns settings into a backend config. SQLite data lives in
// the resolved data directory unless a DSN names the backend.
func (a *app) backendConfig() (types.Config, error) {
	cfg := types.Config{Backend: a.settings.Backend, DSN: a.settings.DSN}
	if cfg.DSN != "" && a.flags.backend == "" {
		// inferred from the DSN scheme
		cfg.Backend = ""
	}
	if cfg.Backend == types.BackendSQLite || (cfg.Backend == "" && cfg.DSN == "") {
		dir, err := paths.ResolveDataDir(a.flags.dataDir, a.settings.DataDir)
		if err != nil {
			return cfg, fmt.Errorf("resolving data dir: %w", err)
		}
		cfg.Backend = types.BackendSQLite
		cfg.DataDir = dir
		cfg.DSN = ""
	}
	return cfg, nil
}

// openBackend attaches the configured backend. The caller must Detach it.
func (a *app) openBackend() (backend.Backend, error) {
	cfg, err := a.backendConfig()
	if err != nil {
		return nil, sysError(err)
	}
	b, err := backend.Open(cfg)
	if err != nil {
		if errors.Is(err, types.ErrBackendUnknown) || errors.Is(err, types.ErrDSNRequired) || errors.Is(err, types.ErrBackendEmpty) {
			return nil, userError(err)
		}
		return nil, sysError(err)
	}
	a.logger.Debug("backend attached", "backend", cfg.Backend, "data_dir", cfg.DataDir)
	return b, nil
}

// print writes v as indented JSON in --json mode and calls text otherwise.
func (a *app) print(w io.Writer, v any, text func(io.Writer)) error {
	if a.flags.jsonMode {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return sysError(fmt.Errorf("marshal JSON: %w", err))
		}
		fmt.Fprintln(w, string(out))
		return nil
	}
	text(w)
	return nil
}

// exitErr attaches an exit code to an error.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

func userError(err error) error { return &exitErr{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitErr{code: exitSysError, err: err} }

// exitCode picks the code for err. Errors without an explicit code are
// user errors when they wrap a validation or rule sentinel.
func exitCode(err error) int {
	var e *exitErr
	if errors.As(err, &e) {
		return e.code
	}
	for _, target := range []error{
		types.ErrInvalidID, types.ErrInvalidData, types.ErrInvalidName,
		types.ErrNotFound, types.ErrDuplicate, types.ErrNotOwner,
		types.ErrFolderLimit, types.ErrNoCollaborators,
	} {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// args wraps a cobra argument validator so violations exit as user errors.
func argsRule(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := v(cmd, a); err != nil {
			return userError(err)
		}
		return nil
	}
}
