package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/jamesainslie/checksums/pkg/checksums/logging"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

func TestLoad_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %q, want %q", cfg.ChunkSize, DefaultChunkSize)
	}
	if cfg.ManifestName != "files_checksum.md5" {
		t.Errorf("ManifestName = %q, want files_checksum.md5", cfg.ManifestName)
	}
	if cfg.LogName != "checker_log.txt" {
		t.Errorf("LogName = %q, want checker_log.txt", cfg.LogName)
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("Output = %q, want %q", cfg.Output, DefaultOutput)
	}
	if cfg.FollowSymlinks {
		t.Error("FollowSymlinks = true, want false")
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled = false, want true")
	}
	if cfg.History.RetentionDays != DefaultRetentionDays {
		t.Errorf("History.RetentionDays = %d, want %d", cfg.History.RetentionDays, DefaultRetentionDays)
	}
	if len(cfg.Exclude) != len(DefaultExclusions) {
		t.Errorf("len(Exclude) = %d, want %d", len(cfg.Exclude), len(DefaultExclusions))
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	size, err := cfg.ChunkSizeBytes()
	if err != nil {
		t.Fatalf("ChunkSizeBytes() error = %v", err)
	}
	if size != 16*1024 {
		t.Errorf("ChunkSizeBytes() = %d, want %d", size, 16*1024)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", "checksums")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
chunk_size: 1MiB
manifest_name: sums.md5
exclude:
  - "*.tmp"
  - cache
follow_symlinks: true
output: json
history:
  enabled: false
  retention_days: 7
logging:
  level: debug
  rotation:
    max_size: 1MB
    max_backups: 2
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ManifestName != "sums.md5" {
		t.Errorf("ManifestName = %q, want sums.md5", cfg.ManifestName)
	}
	if cfg.LogName != DefaultLogName {
		t.Errorf("LogName = %q, want default %q", cfg.LogName, DefaultLogName)
	}
	if strings.Join(cfg.Exclude, ",") != "*.tmp,cache" {
		t.Errorf("Exclude = %v, want [*.tmp cache]", cfg.Exclude)
	}
	if !cfg.FollowSymlinks {
		t.Error("FollowSymlinks = false, want true")
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled = true, want false")
	}
	if cfg.History.RetentionDays != 7 {
		t.Errorf("History.RetentionDays = %d, want 7", cfg.History.RetentionDays)
	}

	size, err := cfg.ChunkSizeBytes()
	if err != nil || size != 1<<20 {
		t.Errorf("ChunkSizeBytes() = %d, %v, want %d", size, err, 1<<20)
	}

	logCfg, err := cfg.LogConfig()
	if err != nil {
		t.Fatalf("LogConfig() error = %v", err)
	}
	if logCfg.Level != "debug" {
		t.Errorf("LogConfig().Level = %q, want debug", logCfg.Level)
	}
	if logCfg.Rotation.MaxSize != 1000*1000 {
		t.Errorf("LogConfig().Rotation.MaxSize = %d, want %d", logCfg.Rotation.MaxSize, 1000*1000)
	}
	if logCfg.Rotation.MaxBackups != 2 {
		t.Errorf("LogConfig().Rotation.MaxBackups = %d, want 2", logCfg.Rotation.MaxBackups)
	}
	if logCfg.Rotation.MaxAge != 30 {
		t.Errorf("LogConfig().Rotation.MaxAge = %d, want default 30", logCfg.Rotation.MaxAge)
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	xdgDir := t.TempDir()
	configDir := filepath.Join(xdgDir, "checksums")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("output: yaml\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", xdgDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Output = %q, want yaml", cfg.Output)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("CHECKSUMS_CHUNK_SIZE", "64KiB")
	t.Setenv("CHECKSUMS_HISTORY_RETENTION_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != "64KiB" {
		t.Errorf("ChunkSize = %q, want 64KiB", cfg.ChunkSize)
	}
	if cfg.History.RetentionDays != 3 {
		t.Errorf("History.RetentionDays = %d, want 3", cfg.History.RetentionDays)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	xdgDir := t.TempDir()
	configDir := filepath.Join(xdgDir, "checksums")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("exclude: [unterminated\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("XDG_CONFIG_HOME", xdgDir)

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestChunkSizeBytes_Invalid(t *testing.T) {
	tests := []string{"", "huge", "0"}
	for _, in := range tests {
		cfg := &Config{ChunkSize: in}
		if _, err := cfg.ChunkSizeBytes(); !errors.Is(err, types.ErrInvalidSize) {
			t.Errorf("ChunkSizeBytes(%q) error = %v, want ErrInvalidSize", in, err)
		}
	}
}

func TestLogConfig_InvalidLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "loud"}}
	if _, err := cfg.LogConfig(); !errors.Is(err, logging.ErrInvalidLevel) {
		t.Errorf("LogConfig() error = %v, want ErrInvalidLevel", err)
	}
}

func TestLogConfig_DefaultPath(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "warn"}}
	logCfg, err := cfg.LogConfig()
	if err != nil {
		t.Fatalf("LogConfig() error = %v", err)
	}
	if logCfg.Path != logging.DefaultLogPath() {
		t.Errorf("Path = %q, want %q", logCfg.Path, logging.DefaultLogPath())
	}
}

func TestDecode_FlagOverride(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("output", "plain")

	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Output != "plain" {
		t.Errorf("Output = %q, want plain", cfg.Output)
	}
	if cfg.ManifestName != DefaultManifestName {
		t.Errorf("ManifestName = %q, want %q", cfg.ManifestName, DefaultManifestName)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if dir != "/custom/config/checksums" {
			t.Errorf("ConfigDir() = %q, want /custom/config/checksums", dir)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv("XDG_CONFIG_HOME", "")
		path, err := ConfigPath()
		if err != nil {
			t.Fatalf("ConfigPath() error = %v", err)
		}
		want := filepath.Join(home, ".config", "checksums", "config.yaml")
		if path != want {
			t.Errorf("ConfigPath() = %q, want %q", path, want)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path)
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if !written {
		t.Error("WriteDefault() written = false, want true")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.ChunkSize != DefaultChunkSize || cfg.ManifestName != DefaultManifestName {
		t.Errorf("default config = %+v", cfg)
	}
	if len(cfg.Exclude) != len(DefaultExclusions) {
		t.Errorf("Exclude = %v, want %v", cfg.Exclude, DefaultExclusions)
	}

	if err := os.WriteFile(path, []byte("output: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	written, err = WriteDefault(path)
	if err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	if written {
		t.Error("WriteDefault() overwrote an existing file")
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{"~/logs/app.log", filepath.Join(home, "logs", "app.log")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDirs(t *testing.T) {
	if !strings.HasSuffix(DataDir(), "checksums") {
		t.Errorf("DataDir() = %q, want suffix checksums", DataDir())
	}
	if !strings.HasSuffix(StateDir(), "checksums") {
		t.Errorf("StateDir() = %q, want suffix checksums", StateDir())
	}
	if filepath.Base(DefaultHistoryPath()) != "history" {
		t.Errorf("DefaultHistoryPath() = %q", DefaultHistoryPath())
	}

	cfg := &Config{History: HistoryConfig{Path: "/tmp/h"}}
	dir, err := cfg.HistoryDir()
	if err != nil || dir != "/tmp/h" {
		t.Errorf("HistoryDir() = %q, %v", dir, err)
	}
}
