package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
	"github.com/jamesainslie/checksums/pkg/checksums/logging"
)

var logger = logging.Get("cli")

// initializeLogging is the root PersistentPreRunE hook. It creates the XDG
// directories and routes logs to the rotating file, echoing warnings (or
// everything with --verbose) to stderr.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if err := ensureDirectories(); err != nil {
		return err
	}

	cfg, err := buildLogConfig(false)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// initTUILogging re-initializes logging for the TUI: no console output,
// recent entries kept for the log pane.
func initTUILogging() error {
	cfg, err := buildLogConfig(true)
	if err != nil {
		return err
	}
	return logging.Init(cfg)
}

// buildLogConfig derives the logging configuration from the loaded config
// and the verbosity flags.
func buildLogConfig(tui bool) (logging.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return logging.Config{}, err
	}
	logCfg, err := cfg.LogConfig()
	if err != nil {
		return logging.Config{}, fmt.Errorf("invalid logging configuration: %w", err)
	}

	switch {
	case tui:
		logCfg.TUIMode = true
	case getQuiet():
		logCfg.ConsoleLevel = ""
	case getVerbose():
		logCfg.Level = logging.LevelDebug.String()
		logCfg.ConsoleLevel = logging.LevelDebug.String()
	default:
		logCfg.ConsoleLevel = logging.LevelWarn.String()
	}
	return logCfg, nil
}

// ensureDirectories creates the config, data and state directories.
func ensureDirectories() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{configDir, config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func closeLogging(_ *cobra.Command, _ []string) {
	_ = logging.Close()
}
