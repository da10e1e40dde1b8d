package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
	"github.com/jamesainslie/checksums/pkg/checksums/session"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

var generateCmd = &cobra.Command{
	Use:     "generate [directory]",
	Aliases: []string{"gen"},
	Short:   "Generate a checksum manifest for a directory",
	Long: `Hash every regular file below a directory into a new MD5 manifest.

The manifest is written to <directory>/files_checksum.md5 (see manifest_name)
with one "<digest> *<relative path>" line per file. Files matching --exclude
patterns, the manifest itself and the verify log are skipped.

Examples:
  checksums generate                 # Current directory
  checksums generate ~/Photos -e '*.tmp'
  checksums generate -n -o paths .   # List the hashed files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

// runGenerate is the generate command handler.
func runGenerate(_ *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	expanded, err := config.ExpandPath(root)
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}
	absRoot, err := filepath.Abs(expanded)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
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

	begin := func(ctx context.Context) (*session.Session, error) {
		return r.ctrl.BeginGenerate(ctx, absRoot)
	}

	if interactive() {
		return r.runInteractive(types.ModeGenerate, absRoot, begin, types.AllKinds)
	}
	return r.runNonInteractive(begin, types.AllKinds)
}
