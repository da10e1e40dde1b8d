// Package walker enumerates the files under a directory for manifest
// generation. Directories are read in parallel with fastwalk; the result is
// sorted so the same tree always yields the same file list.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"

	"github.com/jamesainslie/checksums/pkg/checksums/logging"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

var logger = logging.Get("walker")

// Options configures a walk.
type Options struct {
	// Root is the directory to enumerate.
	Root string

	// Exclude holds glob patterns. A pattern matches either the slash
	// separated path relative to Root or the entry's base name. Matching
	// directories are skipped entirely.
	Exclude []string

	// FollowSymlinks descends into symlinked directories and includes
	// symlinked files.
	FollowSymlinks bool
}

// WalkError records an entry that could not be read.
type WalkError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result is the outcome of a walk.
type Result struct {
	// Root is the absolute root that was walked.
	Root string

	// Files are slash separated paths relative to Root, sorted.
	Files []string

	// Bytes is the total size of Files.
	Bytes int64

	// Errors lists entries skipped because they could not be read.
	Errors []WalkError

	Elapsed time.Duration
}

type walk struct {
	root     string
	follow   bool
	patterns []glob.Glob

	mu     sync.Mutex
	files  []string
	bytes  int64
	errors []WalkError
}

// Walk enumerates the regular files under opts.Root.
// It fails with *types.IOError when the root is missing or unreadable and
// with types.ErrNotDirectory when it is not a directory. Errors below the
// root are collected in Result.Errors.
func Walk(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, &types.IOError{Path: opts.Root, Err: err}
	}
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	patterns, err := compile(opts.Exclude)
	if err != nil {
		return nil, err
	}

	w := &walk{root: root, follow: opts.FollowSymlinks, patterns: patterns}
	conf := fastwalk.Config{Follow: opts.FollowSymlinks}

	logger.Debug("walk started", "root", root, "exclude", len(patterns))
	err = fastwalk.Walk(&conf, root, w.callback(ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &types.IOError{Path: root, Err: err}
	}

	sort.Strings(w.files)
	res := &Result{
		Root:    root,
		Files:   w.files,
		Bytes:   w.bytes,
		Errors:  w.errors,
		Elapsed: time.Since(start),
	}
	if res.Files == nil {
		res.Files = []string{}
	}
	logger.Info("walk complete", "root", root, "files", len(res.Files), "errors", len(res.Errors), "elapsed", res.Elapsed)
	return res, nil
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return &types.IOError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", root, types.ErrNotDirectory)
	}

	f, err := os.Open(root) // #nosec G304
	if err != nil {
		return &types.IOError{Path: root, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return &types.IOError{Path: root, Err: err}
	}
	return nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (w *walk) callback(ctx context.Context) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			w.addError(path, err)
			return nil
		}
		if path == w.root {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			w.addError(path, err)
			return nil
		}
		rel = filepath.ToSlash(rel)

		if w.excluded(rel, d.Name()) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := w.fileInfo(path, d)
		if err != nil {
			w.addError(path, err)
			return nil
		}
		if info == nil || !info.Mode().IsRegular() {
			return nil
		}

		w.mu.Lock()
		w.files = append(w.files, rel)
		w.bytes += info.Size()
		w.mu.Unlock()
		return nil
	}
}

// fileInfo returns nil for entries that are neither regular files nor
// followed symlinks.
func (w *walk) fileInfo(path string, d fs.DirEntry) (fs.FileInfo, error) {
	switch {
	case d.Type().IsRegular():
		return d.Info()
	case d.Type()&fs.ModeSymlink != 0 && w.follow:
		return fastwalk.StatDirEntry(path, d)
	default:
		return nil, nil
	}
}

func (w *walk) excluded(rel, name string) bool {
	for _, g := range w.patterns {
		if g.Match(rel) || g.Match(name) {
			return true
		}
	}
	return false
}

func (w *walk) addError(path string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors = append(w.errors, WalkError{Path: path, Error: err.Error()})
	logger.Warn("walk error", "path", path, "error", err)
}
