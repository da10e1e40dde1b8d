package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
	"github.com/jamesainslie/checksums/pkg/checksums/history"
	"github.com/jamesainslie/checksums/pkg/checksums/output"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View session history",
	Long: `View the history of verify and generate sessions.

Every finished, failed or cancelled session is recorded with its target,
counters and duration.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific session",
	Long:  `Display detailed information about a session by its ID or a unique ID prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistoryStore opens the configured history store.
func openHistoryStore() (*history.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	dir, err := cfg.HistoryDir()
	if err != nil {
		return nil, nil, err
	}
	store, err := history.Open(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, cfg, nil
}

// runHistory lists recent sessions.
func runHistory(cmd *cobra.Command, args []string) error {
	store, _, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(records) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'checksums verify <manifest>' or 'checksums generate <dir>' to record one.")
		return nil
	}

	// Print header
	fmt.Printf("\n%-8s  %-8s  %-10s  %-16s  %-9s  %s\n", "ID", "MODE", "STATUS", "WHEN", "FILES", "TARGET")
	fmt.Println(strings.Repeat("-", 80))

	for _, rec := range records {
		fmt.Printf("%-8s  %-8s  %-10s  %-16s  %-9s  %s\n",
			shortID(rec.ID),
			rec.Mode,
			rec.Status,
			humanize.Time(rec.StartedAt),
			fmt.Sprintf("%d/%d", rec.Processed, rec.Total),
			truncateString(rec.Target, 40),
		)
	}

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(records))
	fmt.Println("Use 'checksums history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays details of a specific session.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, _, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Print(formatRecord(rec))
	return nil
}

// formatRecord renders one history record for history show.
func formatRecord(rec *history.Record) string {
	var b strings.Builder
	b.WriteString("\nSession Details\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "ID:         %s\n", rec.ID)
	fmt.Fprintf(&b, "Mode:       %s\n", rec.Mode)
	fmt.Fprintf(&b, "Status:     %s\n", rec.Status)
	fmt.Fprintf(&b, "Target:     %s\n", rec.Target)
	if rec.Output != "" {
		fmt.Fprintf(&b, "Output:     %s\n", rec.Output)
	}
	fmt.Fprintf(&b, "Started:    %s\n", rec.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Duration:   %s\n", output.FormatDuration(rec.Duration().Round(time.Millisecond)))
	fmt.Fprintf(&b, "Files:      %s of %s\n", humanize.Comma(int64(rec.Processed)), humanize.Comma(int64(rec.Total)))
	fmt.Fprintf(&b, "Hashed:     %s\n", types.FormatSize(rec.Bytes))
	if rec.Mode == types.ModeVerify.String() {
		fmt.Fprintf(&b, "Pass:       %d\n", rec.Counters.Pass)
		fmt.Fprintf(&b, "Missing:    %d\n", rec.Counters.Missing)
		fmt.Fprintf(&b, "Bad:        %d\n", rec.Counters.Bad)
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "Error:      %s\n", rec.Error)
	}
	return b.String()
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	store, cfg, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := store.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("History cleanup complete: %d removed.", removed)
	return nil
}

// shortID returns the leading 8 characters of id, enough for history show.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
