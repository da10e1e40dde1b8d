package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	// MaxSize is the size in bytes that triggers a rotation. Zero uses 10 MiB.
	MaxSize int64

	// MaxAge is the number of days rotated files are kept. Zero keeps them forever.
	MaxAge int

	// MaxBackups is the number of rotated files kept. Zero keeps all of them.
	MaxBackups int
}

// DefaultRotationConfig returns the rotation defaults.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 5,
	}
}

// RotatingWriter is an io.WriteCloser that renames the log aside once it
// grows past MaxSize. Writes hold an advisory flock so several processes
// can share one log file.
type RotatingWriter struct {
	path string
	cfg  RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune(time.Now())
	return w, nil
}

// Write appends p, rotating first if p would push the file past MaxSize.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.cfg.MaxSize {
		if err := w.rotate(time.Now()); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	fd := int(w.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("locking log file: %w", err)
	}
	defer func() {
		_ = unix.Flock(fd, unix.LOCK_UN)
	}()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// rotate renames the current file to <base>.<timestamp><ext> and reopens.
func (w *RotatingWriter) rotate(now time.Time) error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	ext := filepath.Ext(w.path)
	rotated := fmt.Sprintf("%s.%s%s", strings.TrimSuffix(w.path, ext), now.Format("20060102-150405.000"), ext)
	if err := os.Rename(w.path, rotated); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := w.open(); err != nil {
		return err
	}
	w.prune(now)
	return nil
}

// backups lists rotated files for this log, newest first.
func (w *RotatingWriter) backups() []string {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		names = append(names, name)
	}
	// Timestamps sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths
}

// prune removes backups beyond MaxBackups or older than MaxAge days.
func (w *RotatingWriter) prune(now time.Time) {
	maxAge := time.Duration(w.cfg.MaxAge) * 24 * time.Hour
	for i, path := range w.backups() {
		remove := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		if !remove && w.cfg.MaxAge > 0 {
			if info, err := os.Stat(path); err == nil && now.Sub(info.ModTime()) > maxAge {
				remove = true
			}
		}
		if remove {
			_ = os.Remove(path)
		}
	}
}
