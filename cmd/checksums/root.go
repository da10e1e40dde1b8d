package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
)

// errUnclean ends a verify run that found missing or bad files. It maps to
// exit status 2 and is not printed.
var errUnclean = errors.New("verification found missing or bad files")

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "checksums [manifest|directory]",
		Short: "Verify and generate MD5 checksum manifests",
		Long: `Checksums verifies files against an MD5 manifest and generates new manifests.

Given a manifest file, checksums verifies every listed file and writes a
PASS/MISSING/BAD log next to it. Given a directory, it hashes every file
below it into a new manifest.

By default, checksums shows an interactive TUI while it works.
Use --no-interactive or --output for non-interactive output.

Examples:
  checksums files_checksum.md5           # Verify a manifest with TUI
  checksums ~/Photos                     # Generate ~/Photos/files_checksum.md5
  checksums verify -n -o json sums.md5   # Non-interactive JSON report
  checksums log --missing --bad          # Replay failures from checker_log.txt
  checksums history                      # View past sessions`,
		Args:              cobra.MaximumNArgs(1),
		RunE:              runRoot,
		PersistentPreRunE: initializeLogging,
		PersistentPostRun: closeLogging,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/checksums/config.yaml)")
	rootCmd.PersistentFlags().String("chunk-size", "", "read size used while hashing (e.g., 16KiB, 1MiB)")
	rootCmd.PersistentFlags().StringSliceP("exclude", "e", nil, "exclude patterns for generate (can be specified multiple times)")
	rootCmd.PersistentFlags().Bool("follow-symlinks", false, "descend into symlinked directories during generate")
	rootCmd.PersistentFlags().String("manifest-name", "", "manifest file name written by generate")
	rootCmd.PersistentFlags().String("log-name", "", "log file name written by verify")
	rootCmd.PersistentFlags().BoolP("no-interactive", "n", false, "disable TUI, use text output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: "+outputFormats())
	rootCmd.PersistentFlags().String("template", "", "Go template used with -o template")
	rootCmd.PersistentFlags().Bool("no-history", false, "do not record this session in history")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("chunk_size", rootCmd.PersistentFlags().Lookup("chunk-size"))
	_ = viper.BindPFlag("exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("follow_symlinks", rootCmd.PersistentFlags().Lookup("follow-symlinks"))
	_ = viper.BindPFlag("manifest_name", rootCmd.PersistentFlags().Lookup("manifest-name"))
	_ = viper.BindPFlag("log_name", rootCmd.PersistentFlags().Lookup("log-name"))
	_ = viper.BindPFlag("no_interactive", rootCmd.PersistentFlags().Lookup("no-interactive"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("template", rootCmd.PersistentFlags().Lookup("template"))
	_ = viper.BindPFlag("no_history", rootCmd.PersistentFlags().Lookup("no-history"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	v := viper.GetViper()
	config.SetSearchPaths(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	config.SetDefaults(v)

	if err := config.ReadInConfig(v); err != nil {
		printError("%v", err)
	}
}

// loadConfig decodes the merged flag, env and file configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if viper.GetBool("no_history") {
		cfg.History.Enabled = false
	}
	return cfg, nil
}

// runRoot picks verify for a file argument and generate for a directory.
func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	path, err := config.ExpandPath(args[0])
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		return fmt.Errorf("cannot access path: %w", err)
	}

	if info.IsDir() {
		return runGenerate(cmd, []string{path})
	}
	return runVerify(cmd, []string{path})
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errUnclean) {
		printError("%v", err)
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr if quiet mode is not enabled.
// Reports own stdout.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
