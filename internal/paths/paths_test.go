package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDirs_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux-only test")
	}

	t.Run("config uses XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/cypress", got)
	})

	t.Run("data uses XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
		got, err := DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-data/cypress", got)
	})

	t.Run("falls back to home", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")
		orig := platformDir.homeDir
		platformDir.homeDir = func() (string, error) { return "/home/ann", nil }
		t.Cleanup(func() { platformDir.homeDir = orig })

		cfg, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ann/.config/cypress", cfg)

		data, err := DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ann/.local/share/cypress", data)
	})

	t.Run("home lookup failure", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		orig := platformDir.homeDir
		platformDir.homeDir = func() (string, error) { return "", errors.New("no home") }
		t.Cleanup(func() { platformDir.homeDir = orig })

		_, err := DefaultConfigDir()
		assert.Error(t, err)
	})
}

func TestResolveConfigDir(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		envVal  string
		wantSub string
	}{
		{"flag wins over env", "/explicit/config", "/env/config", "/explicit/config"},
		{"env wins when flag empty", "", "/env/config", "/env/config"},
		{"platform default when both empty", "", "", AppName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.envVal)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Contains(t, got, tt.wantSub)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name      string
		flag      string
		configVal string
		envVal    string
		want      string
	}{
		{"flag wins over all", "/flag/data", "/config/data", "/env/data", "/flag/data"},
		{"config wins over env", "", "/config/data", "/env/data", "/config/data"},
		{"env when flag and config empty", "", "", "/env/data", "/env/data"},
		{"cwd default", "", "", "", filepath.Join(cwd, DefaultDataDirName)},
		{"relative flag becomes absolute", "rel/data", "", "", filepath.Join(cwd, "rel", "data")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.envVal)
			got, err := ResolveDataDir(tt.flag, tt.configVal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, filepath.Join("/etc/cypress", "config.yaml"), ConfigFile("/etc/cypress"))
}
