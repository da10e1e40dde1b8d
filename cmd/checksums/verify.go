package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksums/cmd/checksums/tui"
	"github.com/jamesainslie/checksums/pkg/checksums/config"
	"github.com/jamesainslie/checksums/pkg/checksums/session"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <manifest>",
	Short: "Verify files against a checksum manifest",
	Long: `Verify every file listed in an MD5 manifest.

Paths in the manifest are resolved against the manifest's directory. Each
file is reported as PASS, MISSING or BAD and recorded in the log written
next to the manifest (checker_log.txt by default).

Use --pass, --missing and --bad to limit which records are printed; the log
always receives every record.

Exit status is 0 when every file passed, 2 when any file is missing or bad,
and 1 on error.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	addKindFlags(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}

// runVerify is the verify command handler.
func runVerify(cmd *cobra.Command, args []string) error {
	path, err := config.ExpandPath(args[0])
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r, err := newRunner(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	begin := func(context.Context) (*session.Session, error) {
		return r.ctrl.BeginVerify(path)
	}

	if interactive() {
		return r.runInteractive(types.ModeVerify, path, begin, kindFilter(cmd))
	}
	return r.runNonInteractive(begin, kindFilter(cmd))
}

// runInteractive runs the TUI over a session started with begin.
func (r *runner) runInteractive(mode types.Mode, target string, begin tui.BeginFunc, filter types.KindSet) error {
	// Re-initialize logging for TUI mode (enables log buffer, disables console)
	if err := initTUILogging(); err != nil {
		return fmt.Errorf("failed to initialize TUI logging: %w", err)
	}

	s, err := tui.Run(tui.Options{
		Controller: r.ctrl,
		Mode:       mode,
		Target:     target,
		Begin:      begin,
		Filter:     filter,
	})
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	if s.Finished() && s.Mode == types.ModeGenerate && s.Err() == nil {
		printInfo("Done! File saved to %s", s.OutputPath())
	}
	return sessionResult(s)
}
