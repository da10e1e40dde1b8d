package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/jamesainslie/checksums/pkg/checksums/logging"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

var logger = logging.Get("report")

// FileSink keeps records in a text file under the session root.
type FileSink struct {
	name string

	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileSink creates a sink that writes a file called name under the root
// given to Reset. An empty name means DefaultName.
func NewFileSink(name string) *FileSink {
	if name == "" {
		name = DefaultName
	}
	return &FileSink{name: name}
}

// Path returns the current log path, empty before the first Reset.
func (s *FileSink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Reset truncates or creates the log under root and writes the banner.
func (s *FileSink) Reset(root string) error {
	commit, err := s.Open(root)
	if err != nil {
		return err
	}
	return commit()
}

// Open creates the log under root if needed, leaving its content and the
// current log alone until commit.
func (s *FileSink) Open(root string) (func() error, error) {
	path := filepath.Join(root, s.name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &types.IOError{Path: path, Err: err}
	}

	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.file != nil {
			_ = s.file.Close()
			s.file = nil
		}
		if err := f.Truncate(0); err != nil {
			_ = f.Close()
			return &types.IOError{Path: path, Err: err}
		}
		if _, err := f.WriteString(Banner); err != nil {
			_ = f.Close()
			return &types.IOError{Path: path, Err: err}
		}

		s.path = path
		s.file = f
		logger.Debug("log reset", "path", path)
		return nil
	}, nil
}

// Append writes one newline-prefixed record under an advisory file lock.
func (s *FileSink) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("append %s: %w", s.name, os.ErrClosed)
	}

	fd := int(s.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return &types.IOError{Path: s.path, Err: err}
	}
	defer func() {
		_ = unix.Flock(fd, unix.LOCK_UN)
	}()

	if _, err := s.file.WriteString("\n" + rec.String()); err != nil {
		return &types.IOError{Path: s.path, Err: err}
	}
	return nil
}

// Replay re-reads the log from disk.
func (s *FileSink) Replay(filter types.KindSet) ([]Record, error) {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	if path == "" {
		return nil, types.ErrNoSession
	}
	return ReplayFile(path, filter)
}

// Close closes the log file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ReplayFile reads the log at path and returns the records selected by
// filter. Malformed lines are skipped.
func ReplayFile(path string, filter types.KindSet) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.IOError{Path: path, Err: err}
	}
	return filterLines(string(data), filter), nil
}

var _ Sink = (*FileSink)(nil)
