package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
	"github.com/jamesainslie/checksums/pkg/checksums/output"
	"github.com/jamesainslie/checksums/pkg/checksums/report"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

var logCmd = &cobra.Command{
	Use:   "log [log file|directory]",
	Short: "Replay a verify log",
	Long: `Print the records of a verify log, optionally filtered by kind.

The argument may be the log itself or the directory holding it; it
defaults to the log in the current directory. Lines that are not
"<KIND> <path>" records are skipped.

Examples:
  checksums log                      # Every record in ./checker_log.txt
  checksums log --missing --bad      # Only failures
  checksums log ~/Photos -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLog,
}

func init() {
	addKindFlags(logCmd)
	rootCmd.AddCommand(logCmd)
}

// runLog is the log command handler.
func runLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := resolveLogPath(args, cfg.LogName)
	if err != nil {
		return err
	}

	formatter, err := resolveFormatter()
	if err != nil {
		return err
	}

	records, err := report.ReplayFile(path, kindFilter(cmd))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no verify log at %s", path)
		}
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, logReport(path, records)); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}

// resolveLogPath turns the optional argument into a log file path.
func resolveLogPath(args []string, logName string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, logName)
	}
	return filepath.Abs(path)
}

// logReport wraps replayed records in a verify report.
func logReport(path string, records []report.Record) *output.Report {
	rep := &output.Report{
		Mode:   types.ModeVerify,
		Target: path,
		Output: path,
	}
	for _, rec := range records {
		rep.Entries = append(rep.Entries, output.Entry{Path: rec.Path, Kind: rec.Kind})
		rep.Counters.Add(rec.Kind)
	}
	rep.Total = len(records)
	rep.Processed = len(records)
	return rep
}
