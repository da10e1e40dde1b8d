package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/checksums/pkg/checksums/digest"
	"github.com/jamesainslie/checksums/pkg/checksums/dispatch"
	"github.com/jamesainslie/checksums/pkg/checksums/manifest"
	"github.com/jamesainslie/checksums/pkg/checksums/progress"
	"github.com/jamesainslie/checksums/pkg/checksums/report"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// Session is one verify or generate run over a fixed file list.
// Its mutable state is written only by the dispatcher's control goroutine
// and read through the accessor methods.
type Session struct {
	ID        uuid.UUID
	Mode      types.Mode
	Target    string // manifest path or generate root
	Root      string // directory relative paths resolve against
	Files     []string
	StartedAt time.Time

	expected []string // verify: expected digest per file index
	sink     report.Sink
	output   *manifest.Writer
	notify   func(progress.Event)
	onEnd    func(*Session)

	mu         sync.RWMutex
	processed  int
	counters   types.Counters
	bytes      int64
	generated  []manifest.Entry
	finishedAt time.Time
	err        error
	done       chan struct{}
}

func newSession(mode types.Mode, target, root string, files []string) *Session {
	return &Session{
		ID:        uuid.New(),
		Mode:      mode,
		Target:    target,
		Root:      root,
		Files:     files,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// OnResult classifies or records one file. It implements dispatch.Handler.
func (s *Session) OnResult(res dispatch.Result) error {
	ev := progress.Event{Session: s.ID, Mode: s.Mode, Path: res.Item.Path, Digest: res.Digest}

	switch s.Mode {
	case types.ModeVerify:
		outcome := types.Missing()
		if !res.Missing {
			outcome = digest.Classify(s.expected[res.Index], res.Digest)
		}
		ev.Kind = outcome.Kind
		if err := s.sink.Append(report.Record{Kind: outcome.Kind, Path: res.Item.Path}); err != nil {
			return err
		}
		s.record(outcome.Kind, res.Size, nil)

	case types.ModeGenerate:
		if res.Missing {
			// Vanished between the walk and its turn.
			ev.Kind = types.KindMissing
			s.record(types.KindMissing, 0, nil)
			break
		}
		if err := s.output.Append(res.Digest, res.Item.Path); err != nil {
			return err
		}
		ev.Kind = types.KindPass
		s.record(types.KindPass, res.Size, &manifest.Entry{Path: res.Item.Path, Digest: res.Digest})
	}

	ev.Processed, ev.Total, ev.Counters = s.snapshot()
	s.notify(ev)
	return nil
}

// OnComplete ends the session. It implements dispatch.Handler.
func (s *Session) OnComplete(err error) {
	if s.output != nil {
		if cerr := s.output.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s.sink != nil {
		_ = s.sink.Close()
	}

	s.mu.Lock()
	s.finishedAt = time.Now()
	s.err = err
	s.mu.Unlock()

	processed, total, counters := s.snapshot()
	s.notify(progress.Event{
		Session:   s.ID,
		Mode:      s.Mode,
		Processed: processed,
		Total:     total,
		Counters:  counters,
		Done:      true,
		Err:       err,
	})
	if s.onEnd != nil {
		s.onEnd(s)
	}
	close(s.done)
}

func (s *Session) record(kind types.Kind, size int64, entry *manifest.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.counters.Add(kind)
	s.bytes += size
	if entry != nil {
		s.generated = append(s.generated, *entry)
	}
}

func (s *Session) snapshot() (int, int, types.Counters) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed, len(s.Files), s.counters
}

// Progress returns the number of processed files and the total.
func (s *Session) Progress() (int, int) {
	processed, total, _ := s.snapshot()
	return processed, total
}

// Counters returns the running counters.
func (s *Session) Counters() types.Counters {
	_, _, c := s.snapshot()
	return c
}

// Bytes returns the number of bytes hashed so far.
func (s *Session) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

// Generated returns the entries written so far in generate mode.
func (s *Session) Generated() []manifest.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]manifest.Entry(nil), s.generated...)
}

// OutputPath returns the generated manifest path, or the log path in
// verify mode when the log lives on disk.
func (s *Session) OutputPath() string {
	if s.output != nil {
		return s.output.Path()
	}
	if fs, ok := s.sink.(*report.FileSink); ok {
		return fs.Path()
	}
	return ""
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error the session ended with. It is nil while running
// and after a successful run.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Finished reports whether the session has ended.
func (s *Session) Finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Elapsed returns the time since start, or the run time once finished.
func (s *Session) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.finishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.finishedAt.Sub(s.StartedAt)
}

// FinishedAt returns when the session ended, zero while running.
func (s *Session) FinishedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finishedAt
}

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancelled reports whether the session was abandoned.
func (s *Session) Cancelled() bool {
	return errors.Is(s.Err(), types.ErrCancelled)
}
