package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage checksums configuration settings.

The config file lives at $XDG_CONFIG_HOME/checksums/config.yaml, falling back
to ~/.config/checksums/config.yaml. Every key can be overridden from the
environment with the CHECKSUMS_ prefix, dots becoming underscores:

  CHECKSUMS_CHUNK_SIZE=1MiB
  CHECKSUMS_LOG_NAME=verify.log
  CHECKSUMS_HISTORY_ENABLED=false`,
}

func init() {
	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "edit",
			Short: "Open the config file in $VISUAL or $EDITOR",
			RunE:  runConfigEdit,
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a default config file if none exists",
			RunE:  runConfigInit,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := config.ConfigPath()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			},
		},
	)
	rootCmd.AddCommand(configCmd)
}

// envName returns the environment variable that overrides key.
func envName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(config.AppName) + "_" + strings.ToUpper(r.Replace(key))
}

// envOverrides returns NAME=value for every known key set in the environment,
// sorted by name.
func envOverrides(keys []string, lookup func(string) (string, bool)) []string {
	var out []string
	for _, key := range keys {
		name := envName(key)
		if val, ok := lookup(name); ok && val != "" {
			out = append(out, name+"="+val)
		}
	}
	sort.Strings(out)
	return out
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return writeConfig(cmd.OutOrStdout(), cfg, viper.ConfigFileUsed(),
		envOverrides(viper.AllKeys(), os.LookupEnv))
}

func writeConfig(w io.Writer, cfg *config.Config, file string, overrides []string) error {
	if file == "" {
		file = "(none, using defaults)"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	fmt.Fprintf(w, "# file: %s\n", file)
	for _, o := range overrides {
		fmt.Fprintf(w, "# env:  %s\n", o)
	}
	_, err = w.Write(data)
	return err
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := editorCommand(os.Getenv)
	printVerbose("Opening %s with %s", path, editor)

	c := exec.Command(editor, path) // #nosec G204
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", editor, err)
	}
	return nil
}

// editorCommand picks $VISUAL, then $EDITOR, then vi.
func editorCommand(getenv func(string) string) string {
	for _, name := range []string{"VISUAL", "EDITOR"} {
		if v := getenv(name); v != "" {
			return v
		}
	}
	return "vi"
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	written, err := config.WriteDefault(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if written {
		printInfo("Created %s", path)
	} else {
		printInfo("%s already exists; use 'checksums config edit'", path)
	}
	return nil
}
