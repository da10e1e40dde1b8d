package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends entries to a manifest file as digests complete.
// It writes the header on creation and one newline-prefixed entry per Append.
type Writer struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	count int
}

// Create truncates or creates the manifest at path and writes the header.
func Create(path string) (*Writer, error) {
	w, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := w.Begin(); err != nil {
		return nil, err
	}
	return w, nil
}

// Open creates the manifest at path if needed without changing an
// existing file. Call Begin before the first Append.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest: %w", err)
	}
	return &Writer{path: path, file: f}, nil
}

// Begin truncates the manifest and writes the header. On failure the
// writer is closed.
func (w *Writer) Begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return os.ErrClosed
	}
	if err := w.file.Truncate(0); err != nil {
		w.abort()
		return fmt.Errorf("failed to truncate manifest: %w", err)
	}
	if _, err := w.file.WriteString(Header()); err != nil {
		w.abort()
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	w.count = 0
	return nil
}

func (w *Writer) abort() {
	_ = w.file.Close()
	w.file = nil
}

// Append writes one entry.
func (w *Writer) Append(digest, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return os.ErrClosed
	}
	if _, err := w.file.WriteString("\n" + FormatEntry(digest, path)); err != nil {
		return fmt.Errorf("failed to append manifest entry: %w", err)
	}
	w.count++
	return nil
}

// Path returns the manifest file path.
func (w *Writer) Path() string {
	return w.path
}

// Count returns the number of entries appended so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
