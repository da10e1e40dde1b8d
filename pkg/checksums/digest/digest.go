// Package digest computes file digests and classifies verification outcomes.
package digest

import (
	"crypto/md5" // #nosec G501 -- used for file integrity verification only
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"os"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 16 * 1024

// Engine streams files through MD5 in fixed-size chunks.
type Engine struct {
	chunkSize int
	newHash   func() hash.Hash
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunkSize sets the read size. Values below one fall back to DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		chunkSize: DefaultChunkSize,
		newHash:   md5.New, // #nosec G401 -- used for file integrity verification only
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ChunkSize returns the configured read size.
func (e *Engine) ChunkSize() int {
	return e.chunkSize
}

// DigestFile returns the lowercase hex digest of the file at path.
// Open and read failures are returned as *types.IOError and no digest is
// returned alongside them.
func (e *Engine) DigestFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", &types.IOError{Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	h := e.newHash()
	buf := make([]byte, e.chunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			// hash.Hash.Write never fails.
			_, _ = h.Write(buf[:n])
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return "", &types.IOError{Path: path, Err: rerr}
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Classify compares an expected digest with the computed one.
func Classify(expected, actual string) types.Outcome {
	if actual == expected {
		return types.Pass()
	}
	return types.Mismatch(actual)
}
