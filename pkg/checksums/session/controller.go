// Package session orchestrates verify and generate runs.
//
// A Controller owns the dispatcher, the report sink and the progress
// broadcaster. Each Begin call replaces the current Session: the previous
// one is cancelled, and any digest it still has in flight is dropped when it
// arrives.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jamesainslie/checksums/pkg/checksums/digest"
	"github.com/jamesainslie/checksums/pkg/checksums/dispatch"
	"github.com/jamesainslie/checksums/pkg/checksums/history"
	"github.com/jamesainslie/checksums/pkg/checksums/logging"
	"github.com/jamesainslie/checksums/pkg/checksums/manifest"
	"github.com/jamesainslie/checksums/pkg/checksums/progress"
	"github.com/jamesainslie/checksums/pkg/checksums/report"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
	"github.com/jamesainslie/checksums/pkg/checksums/walker"
)

var logger = logging.Get("session")

// Options configures a Controller.
type Options struct {
	// ManifestName is the file generate writes under its root.
	ManifestName string
	// Exclude holds glob patterns skipped by generate.
	Exclude []string
	// FollowSymlinks makes generate descend into symlinked directories.
	FollowSymlinks bool

	// Engine computes digests. Defaults to an MD5 engine with 16 KiB chunks.
	Engine dispatch.Digester
	// Sink receives verify records. Defaults to a FileSink named
	// report.DefaultName.
	Sink report.Sink
	// History, when set, receives a record for every finished session.
	History *history.Store
}

// Controller runs one session at a time.
type Controller struct {
	opts       Options
	dispatcher *dispatch.Dispatcher
	broadcast  *progress.Broadcaster

	// beginMu serializes Begin calls so cancel, reset and start happen
	// as one step.
	beginMu sync.Mutex

	mu      sync.RWMutex
	current *Session
}

// New creates a Controller.
func New(opts Options) *Controller {
	if opts.ManifestName == "" {
		opts.ManifestName = manifest.DefaultName
	}
	if opts.Engine == nil {
		opts.Engine = digest.New()
	}
	if opts.Sink == nil {
		opts.Sink = report.NewFileSink(report.DefaultName)
	}
	return &Controller{
		opts:       opts,
		dispatcher: dispatch.New(opts.Engine),
		broadcast:  progress.New(),
	}
}

// BeginVerify parses the manifest at manifestPath and starts verifying the
// files it lists, relative to the manifest's directory.
//
// A manifest that is empty or has a malformed line fails with an error
// wrapping both types.ErrInvalidManifest and the codec error. A manifest
// that cannot be read, or a log that cannot be created, fails with
// *types.IOError. In these cases the current session is left running.
func (c *Controller) BeginVerify(manifestPath string) (*Session, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, &types.IOError{Path: manifestPath, Err: err}
	}

	m, err := manifest.Load(abs)
	if err != nil {
		var ioErr *types.IOError
		if errors.As(err, &ioErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidManifest, err)
	}

	entries := m.Entries()
	root := filepath.Dir(abs)
	files := make([]string, len(entries))
	expected := make([]string, len(entries))
	items := make([]dispatch.Item, len(entries))
	for i, e := range entries {
		files[i] = e.Path
		expected[i] = e.Digest
		items[i] = dispatch.Item{Path: e.Path, Abs: resolve(root, e.Path)}
	}

	c.beginMu.Lock()
	defer c.beginMu.Unlock()

	// The log is opened before the current session is touched so a
	// failure leaves it running. Truncation waits until it has stopped
	// writing, since both may share the same file.
	commit, err := c.opts.Sink.Open(root)
	if err != nil {
		return nil, err
	}
	c.dispatcher.Cancel()
	if err := commit(); err != nil {
		return nil, err
	}

	s := c.newSession(types.ModeVerify, abs, root, files)
	s.expected = expected
	s.sink = c.opts.Sink

	logger.Info("verify started", "session", s.ID, "manifest", abs, "files", len(files))
	return s, c.start(s, items)
}

// BeginGenerate enumerates every regular file under root and starts
// hashing them into a new manifest written under root. It fails with
// *types.IOError or types.ErrNotDirectory when root cannot be walked, and
// with *types.IOError when the manifest cannot be created. In these cases
// the current session is left running.
func (c *Controller) BeginGenerate(ctx context.Context, root string) (*Session, error) {
	res, err := walker.Walk(ctx, walker.Options{
		Root:           root,
		Exclude:        c.opts.Exclude,
		FollowSymlinks: c.opts.FollowSymlinks,
	})
	if err != nil {
		return nil, err
	}
	for _, we := range res.Errors {
		logger.Warn("skipped unreadable entry", "path", we.Path, "error", we.Error)
	}

	files := make([]string, 0, len(res.Files))
	items := make([]dispatch.Item, 0, len(res.Files))
	for _, rel := range res.Files {
		// The manifest being written is not part of its own content.
		if rel == c.opts.ManifestName {
			continue
		}
		files = append(files, rel)
		items = append(items, dispatch.Item{Path: rel, Abs: resolve(res.Root, rel)})
	}

	c.beginMu.Lock()
	defer c.beginMu.Unlock()

	path := filepath.Join(res.Root, c.opts.ManifestName)
	out, err := manifest.Open(path)
	if err != nil {
		return nil, &types.IOError{Path: path, Err: err}
	}
	c.dispatcher.Cancel()
	if err := out.Begin(); err != nil {
		return nil, &types.IOError{Path: path, Err: err}
	}

	s := c.newSession(types.ModeGenerate, res.Root, res.Root, files)
	s.output = out

	logger.Info("generate started", "session", s.ID, "root", res.Root, "files", len(files), "bytes", res.Bytes)
	return s, c.start(s, items)
}

func (c *Controller) newSession(mode types.Mode, target, root string, files []string) *Session {
	s := newSession(mode, target, root, files)
	s.notify = c.broadcast.Notify
	s.onEnd = c.ended
	return s
}

func (c *Controller) start(s *Session, items []dispatch.Item) error {
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	if err := c.dispatcher.Start(dispatch.Run{ID: s.ID, Items: items, Handler: s}); err != nil {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		if s.output != nil {
			_ = s.output.Close()
		}
		return err
	}
	return nil
}

// ended runs on the dispatcher's control goroutine when s finishes.
func (c *Controller) ended(s *Session) {
	processed, total, counters := s.snapshot()
	err := s.Err()

	status := history.StatusCompleted
	switch {
	case errors.Is(err, types.ErrCancelled):
		status = history.StatusCancelled
		logger.Info("session cancelled", "session", s.ID, "processed", processed, "total", total)
	case err != nil:
		status = history.StatusFailed
		logger.Error("session failed", "session", s.ID, "error", err)
	default:
		logger.Info("session complete", "session", s.ID,
			"pass", counters.Pass, "missing", counters.Missing, "bad", counters.Bad,
			"elapsed", s.Elapsed())
	}

	if c.opts.History == nil {
		return
	}
	rec := &history.Record{
		ID:         s.ID.String(),
		Mode:       s.Mode.String(),
		Target:     s.Target,
		Output:     s.OutputPath(),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt(),
		Total:      total,
		Processed:  processed,
		Counters:   counters,
		Bytes:      s.Bytes(),
		Status:     status,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if herr := c.opts.History.Put(rec); herr != nil {
		logger.Warn("failed to record session history", "session", s.ID, "error", herr)
	}
}

// Current returns the current session, or nil before the first Begin.
func (c *Controller) Current() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// CurrentProgress returns the processed count and total of the current
// session, or zeros when there is none.
func (c *Controller) CurrentProgress() (int, int) {
	s := c.Current()
	if s == nil {
		return 0, 0
	}
	return s.Progress()
}

// CurrentCounters returns the counters of the current session.
func (c *Controller) CurrentCounters() types.Counters {
	s := c.Current()
	if s == nil {
		return types.Counters{}
	}
	return s.Counters()
}

// State returns the dispatcher state.
func (c *Controller) State() dispatch.State {
	return c.dispatcher.State()
}

// Cancel abandons the current session. It reports whether one was running.
func (c *Controller) Cancel() bool {
	return c.dispatcher.Cancel()
}

// Subscribe registers for progress events of every session.
func (c *Controller) Subscribe() *progress.Subscriber {
	return c.broadcast.Subscribe()
}

// Unsubscribe removes a subscriber.
func (c *Controller) Unsubscribe(id string) {
	c.broadcast.Unsubscribe(id)
}

// Replay returns the verify records of the current log whose kind is in
// filter. The default file sink fails with types.ErrNoSession before the
// first verify.
func (c *Controller) Replay(filter types.KindSet) ([]report.Record, error) {
	return c.opts.Sink.Replay(filter)
}

// Close cancels the current session and stops the dispatcher.
func (c *Controller) Close() {
	c.dispatcher.Close()
	c.broadcast.Close()
}

// resolve returns the on-disk path of a manifest or walk path.
func resolve(root, rel string) string {
	p := filepath.FromSlash(rel)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

