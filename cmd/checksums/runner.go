package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
	"github.com/jamesainslie/checksums/pkg/checksums/digest"
	"github.com/jamesainslie/checksums/pkg/checksums/history"
	"github.com/jamesainslie/checksums/pkg/checksums/output"
	"github.com/jamesainslie/checksums/pkg/checksums/progress"
	"github.com/jamesainslie/checksums/pkg/checksums/report"
	"github.com/jamesainslie/checksums/pkg/checksums/session"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// progressLogInterval spaces the periodic progress lines written to the log
// during non-interactive runs.
const progressLogInterval = 5 * time.Second

// runner owns the controller and history store for one command.
type runner struct {
	cfg     *config.Config
	ctrl    *session.Controller
	history *history.Store
}

// newRunner builds a controller from cfg. History problems are logged and
// disable history for this run.
func newRunner(cfg *config.Config) (*runner, error) {
	chunk, err := cfg.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}

	r := &runner{cfg: cfg}
	if cfg.History.Enabled {
		r.history = openHistory(cfg)
	}

	exclude := append([]string(nil), cfg.Exclude...)
	if cfg.LogName != "" {
		exclude = append(exclude, cfg.LogName)
	}

	r.ctrl = session.New(session.Options{
		ManifestName:   cfg.ManifestName,
		Exclude:        exclude,
		FollowSymlinks: cfg.FollowSymlinks,
		Engine:         digest.New(digest.WithChunkSize(chunk)),
		Sink:           report.NewFileSink(cfg.LogName),
		History:        r.history,
	})
	printVerbose("Chunk size %s, manifest %s, log %s", types.FormatSize(int64(chunk)), cfg.ManifestName, cfg.LogName)
	return r, nil
}

// openHistory opens the history store and applies retention.
func openHistory(cfg *config.Config) *history.Store {
	dir, err := cfg.HistoryDir()
	if err != nil {
		logger.Warn("history disabled", "error", err)
		return nil
	}
	store, err := history.Open(dir)
	if err != nil {
		logger.Warn("history disabled", "path", dir, "error", err)
		return nil
	}
	if cfg.History.RetentionDays > 0 {
		if n, err := store.Cleanup(cfg.History.RetentionDays); err != nil {
			logger.Warn("history cleanup failed", "error", err)
		} else if n > 0 {
			logger.Debug("pruned history", "removed", n)
		}
	}
	return store
}

func (r *runner) Close() {
	r.ctrl.Close()
	if r.history != nil {
		_ = r.history.Close()
	}
}

// runNonInteractive starts a session with begin, shows a progress bar on
// stderr until it ends and prints the formatted report on stdout.
func (r *runner) runNonInteractive(begin func(context.Context) (*session.Session, error), filter types.KindSet) error {
	formatter, err := resolveFormatter()
	if err != nil {
		return err
	}

	// Setup context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := r.ctrl.Subscribe()
	defer r.ctrl.Unsubscribe(sub.ID)

	s, err := begin(ctx)
	if err != nil {
		return err
	}
	printVerbose("Session %s: %d files", s.ID, len(s.Files))

	go func() {
		select {
		case <-ctx.Done():
			printInfo("\nInterrupted, stopping...")
			r.ctrl.Cancel()
		case <-s.Done():
		}
	}()

	r.track(s, sub.Events)

	rep := r.buildReport(s, filter)
	var buf bytes.Buffer
	if err := formatter.Format(&buf, rep); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())

	return sessionResult(s)
}

// track renders progress for s until it ends.
func (r *runner) track(s *session.Session, events <-chan progress.Event) {
	bar := newProgressBar(len(s.Files), s.Mode.String())
	limiter := rate.NewLimiter(rate.Every(progressLogInterval), 1)
	_ = limiter.Allow()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Session != s.ID {
				continue
			}
			_ = bar.Set(ev.Processed)
			bar.Describe(describe(s.Mode, ev.Counters))
			if limiter.Allow() {
				logger.Info("progress", "session", s.ID, "processed", ev.Processed, "total", ev.Total)
			}
		case <-s.Done():
			processed, _ := s.Progress()
			_ = bar.Set(processed)
			_ = bar.Finish()
			return
		}
	}
}

// newProgressBar creates a file-count bar on stderr, hidden with --quiet.
func newProgressBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(!getQuiet()),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(120*time.Millisecond),
	)
}

// describe renders the running counters for the bar description.
func describe(mode types.Mode, c types.Counters) string {
	if mode == types.ModeGenerate {
		return fmt.Sprintf("generate | missing=%d", c.Missing)
	}
	return fmt.Sprintf("verify | pass=%d missing=%d bad=%d", c.Pass, c.Missing, c.Bad)
}

// buildReport collects the outcome of a finished session.
func (r *runner) buildReport(s *session.Session, filter types.KindSet) *output.Report {
	processed, total := s.Progress()
	rep := &output.Report{
		Session:   s.ID.String(),
		Mode:      s.Mode,
		Target:    s.Target,
		Output:    s.OutputPath(),
		Counters:  s.Counters(),
		Total:     total,
		Processed: processed,
		Bytes:     s.Bytes(),
		Duration:  s.Elapsed(),
		Cancelled: s.Cancelled(),
	}
	if err := s.Err(); err != nil && !rep.Cancelled {
		rep.Error = err.Error()
	}

	if s.Mode == types.ModeGenerate {
		for _, e := range s.Generated() {
			rep.Entries = append(rep.Entries, output.Entry{Path: e.Path, Kind: types.KindPass, Digest: e.Digest})
		}
		if rep.Counters.Missing > 0 {
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("%d files disappeared before they could be hashed", rep.Counters.Missing))
		}
		return rep
	}

	records, err := r.ctrl.Replay(filter)
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("could not read log: %v", err))
		return rep
	}
	for _, rec := range records {
		rep.Entries = append(rep.Entries, output.Entry{Path: rec.Path, Kind: rec.Kind})
	}
	return rep
}

// sessionResult maps how s ended to the command error: errUnclean for a
// verify with missing or bad files.
func sessionResult(s *session.Session) error {
	err := s.Err()
	switch {
	case errors.Is(err, types.ErrCancelled):
		return err
	case err != nil:
		return fmt.Errorf("%s failed: %w", s.Mode, err)
	case s.Mode == types.ModeVerify && !s.Counters().Clean():
		return errUnclean
	}
	return nil
}
