// Package paths resolves where cypress keeps its configuration and its
// SQLite data.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under platform config and data roots.
const AppName = "cypress"

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".cypress"
	DefaultDataDirName   = ".cypress-db"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CYPRESS_CONFIG_DIR"
	EnvDataDir   = "CYPRESS_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/cypress (fallback ~/.config/cypress)
// macOS:   ~/Library/Application Support/cypress
// Windows: %APPDATA%/cypress
func DefaultConfigDir() (string, error) {
	return platformRoot("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/cypress (fallback ~/.local/share/cypress)
// macOS and Windows share the config location.
func DefaultDataDir() (string, error) {
	return platformRoot("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func platformRoot(xdgVar, homeRel string) (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv(xdgVar); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, homeRel, AppName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir applies flag > CYPRESS_CONFIG_DIR > DefaultConfigDir.
// Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir applies flag > config.yaml data_dir > CYPRESS_DATA_DIR >
// $(CWD)/.cypress-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the path of the configuration file in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}
