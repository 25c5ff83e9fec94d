package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cypress/internal/paths"
	"github.com/mesh-intelligence/cypress/internal/search"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Config keys in config.yaml. Each can be overridden by CYPRESS_<KEY>.
const (
	cfgKeyBackend        = "backend"
	cfgKeyDataDir        = "data_dir"
	cfgKeyDSN            = "dsn"
	cfgKeyListenAddr     = "listen_addr"
	cfgKeyLogLevel       = "log_level"
	cfgKeyLogFormat      = "log_format"
	cfgKeySearchDebounce = "search_debounce"

	envPrefix = "CYPRESS"
)

const (
	defaultListenAddr = ":8080"
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
)

// settings is the resolved configuration.
type settings struct {
	Backend        string
	DataDir        string
	DSN            string
	ListenAddr     string
	LogLevel       string
	LogFormat      string
	SearchDebounce time.Duration
}

// configFile is what init writes to config.yaml.
type configFile struct {
	Backend        string `yaml:"backend"`
	DataDir        string `yaml:"data_dir,omitempty"`
	DSN            string `yaml:"dsn,omitempty"`
	ListenAddr     string `yaml:"listen_addr"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	SearchDebounce string `yaml:"search_debounce"`
}

func defaultConfigFile() configFile {
	return configFile{
		Backend:        types.BackendSQLite,
		ListenAddr:     defaultListenAddr,
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
		SearchDebounce: search.DefaultDelay.String(),
	}
}

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. Environment variables override file values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir), defaultConfigFile()); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyListenAddr, defaultListenAddr)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, defaultLogFormat)
	v.SetDefault(cfgKeySearchDebounce, search.DefaultDelay)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// settingsFrom extracts settings from v.
func settingsFrom(v *viper.Viper) settings {
	return settings{
		Backend:        strings.ToLower(strings.TrimSpace(v.GetString(cfgKeyBackend))),
		DataDir:        v.GetString(cfgKeyDataDir),
		DSN:            v.GetString(cfgKeyDSN),
		ListenAddr:     v.GetString(cfgKeyListenAddr),
		LogLevel:       v.GetString(cfgKeyLogLevel),
		LogFormat:      v.GetString(cfgKeyLogFormat),
		SearchDebounce: v.GetDuration(cfgKeySearchDebounce),
	}
}

// writeConfigIfMissing writes cfg to path unless a file is already there.
func writeConfigIfMissing(path string, cfg configFile) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config file: %w", err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte("# cypress configuration\n"), data...), 0o644)
}
