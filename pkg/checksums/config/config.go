package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/checksums/pkg/checksums/logging"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level    string         `mapstructure:"level" yaml:"level"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// HistoryConfig configures the session history store.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	ChunkSize      string        `mapstructure:"chunk_size" yaml:"chunk_size"`
	ManifestName   string        `mapstructure:"manifest_name" yaml:"manifest_name"`
	LogName        string        `mapstructure:"log_name" yaml:"log_name"`
	Exclude        []string      `mapstructure:"exclude" yaml:"exclude"`
	FollowSymlinks bool          `mapstructure:"follow_symlinks" yaml:"follow_symlinks"`
	Output         string        `mapstructure:"output" yaml:"output"`
	NoInteractive  bool          `mapstructure:"no_interactive" yaml:"no_interactive"`
	History        HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging        LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ChunkSizeBytes parses ChunkSize.
func (c *Config) ChunkSizeBytes() (int, error) {
	n, err := types.ParseSize(c.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("chunk_size: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("chunk_size: %w: must be positive", types.ErrInvalidSize)
	}
	return int(n), nil
}

// LogConfig converts the logging section into a logging.Config.
func (c *Config) LogConfig() (logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.Config{}, err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level.String()
	if c.Logging.Path != "" {
		path, err := ExpandPath(c.Logging.Path)
		if err != nil {
			return logging.Config{}, err
		}
		cfg.Path = path
	}
	if c.Logging.Rotation.MaxSize != "" {
		size, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		cfg.Rotation.MaxSize = size
	}
	cfg.Rotation.MaxAge = c.Logging.Rotation.MaxAge
	cfg.Rotation.MaxBackups = c.Logging.Rotation.MaxBackups
	return cfg, nil
}

// HistoryDir returns the history database directory, expanding ~.
func (c *Config) HistoryDir() (string, error) {
	if c.History.Path == "" {
		return DefaultHistoryPath(), nil
	}
	return ExpandPath(c.History.Path)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("manifest_name", DefaultManifestName)
	v.SetDefault("log_name", DefaultLogName)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("follow_symlinks", false)
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("no_interactive", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means DefaultHistoryPath
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means logging.DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
}

// SetSearchPaths points v at the config file locations and the
// CHECKSUMS_ environment prefix.
func SetSearchPaths(v *viper.Viper) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if dir, err := ConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// ReadInConfig reads the config file into v. A missing file is not an error.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Decode unmarshals v into a Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/checksums/config.yaml
//   - $HOME/.config/checksums/config.yaml
//
// Environment variables are prefixed with CHECKSUMS_ (e.g., CHECKSUMS_CHUNK_SIZE).
func Load() (*Config, error) {
	v := viper.New()
	SetSearchPaths(v)
	SetDefaults(v)
	if err := ReadInConfig(v); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file to path if none exists.
// It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	var exclude strings.Builder
	for _, p := range DefaultExclusions {
		fmt.Fprintf(&exclude, "  - %q\n", p)
	}

	content := fmt.Sprintf(`# checksums configuration

# Read size used while hashing (e.g. 16KiB, 1MiB)
chunk_size: %s

# File written by "checksums generate" under the scanned directory
manifest_name: %s

# Log written by "checksums verify" next to the manifest
log_name: %s

# Glob patterns skipped by generate (matched against the relative path and the base name)
exclude:
%s
# Descend into symlinked directories during generate
follow_symlinks: false

# Report format for non-interactive runs: pretty, plain, json, jsonl, yaml
output: %s

# Session history
history:
  enabled: true
  # Empty means $XDG_DATA_HOME/checksums/history
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: %s
  # Empty means $XDG_STATE_HOME/checksums/checksums.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
`, DefaultChunkSize, DefaultManifestName, DefaultLogName, exclude.String(),
		DefaultOutput, DefaultRetentionDays, DefaultLogLevel)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/checksums/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns $XDG_STATE_HOME/checksums/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultHistoryPath returns the default history database directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
