// Package types provides the core data types shared by the checksums packages.
// It defines verification outcomes, session counters, record kinds and the
// error values surfaced by the manifest codec, digest engine and dispatcher.
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Mode selects what a session does with each digest.
type Mode int

const (
	// ModeVerify compares digests against a loaded manifest.
	ModeVerify Mode = iota
	// ModeGenerate writes digests into a new manifest.
	ModeGenerate
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeVerify:
		return "verify"
	case ModeGenerate:
		return "generate"
	default:
		return "unknown"
	}
}

// Kind classifies a processed file. It doubles as the leading token of a
// log record.
type Kind int

const (
	// KindPass means the computed digest matched the expected one.
	KindPass Kind = iota
	// KindMissing means the file was absent when its turn came.
	KindMissing
	// KindBad means the computed digest differed from the expected one.
	KindBad
)

var kindTokens = [...]string{"PASS", "MISSING", "BAD"}

// String returns the log token for the kind (PASS, MISSING or BAD).
func (k Kind) String() string {
	if k < KindPass || k > KindBad {
		return "UNKNOWN"
	}
	return kindTokens[k]
}

// ParseKind parses a log token. Matching is exact: log tokens are always
// written upper case.
func ParseKind(token string) (Kind, bool) {
	for i, t := range kindTokens {
		if t == token {
			return Kind(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as tokens.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(k.String())), nil
}

// Outcome is the per-file result of a verification pass.
// Actual is set only for KindBad.
type Outcome struct {
	Kind   Kind
	Actual string
}

// Pass returns the outcome for a matching file.
func Pass() Outcome { return Outcome{Kind: KindPass} }

// Missing returns the outcome for an absent file.
func Missing() Outcome { return Outcome{Kind: KindMissing} }

// Mismatch returns the outcome for a file whose digest is actual.
func Mismatch(actual string) Outcome { return Outcome{Kind: KindBad, Actual: actual} }

// Counters tracks how many files ended up in each kind during a session.
type Counters struct {
	Pass    int `json:"pass" yaml:"pass"`
	Missing int `json:"missing" yaml:"missing"`
	Bad     int `json:"bad" yaml:"bad"`
}

// Add records one file of the given kind.
func (c *Counters) Add(k Kind) {
	switch k {
	case KindPass:
		c.Pass++
	case KindMissing:
		c.Missing++
	case KindBad:
		c.Bad++
	}
}

// Total returns the number of files counted.
func (c Counters) Total() int {
	return c.Pass + c.Missing + c.Bad
}

// Clean reports whether no file was missing or bad.
func (c Counters) Clean() bool {
	return c.Missing == 0 && c.Bad == 0
}

// KindSet is a filter over record kinds.
type KindSet uint8

// AllKinds selects every kind.
const AllKinds = KindSet(1<<KindPass | 1<<KindMissing | 1<<KindBad)

// NewKindSet builds a set from the given kinds.
func NewKindSet(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool { return s&(1<<k) != 0 }

// With returns the set with k added.
func (s KindSet) With(k Kind) KindSet { return s | 1<<k }

// Toggle returns the set with k flipped.
func (s KindSet) Toggle(k Kind) KindSet { return s ^ 1<<k }

// Sentinel errors.
var (
	// ErrEmptyManifest indicates that a manifest parsed cleanly but had no entries.
	ErrEmptyManifest = errors.New("manifest has no entries")

	// ErrInvalidManifest wraps any codec failure reported while starting a verify session.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrSessionRunning indicates that the dispatcher is already running a session.
	ErrSessionRunning = errors.New("session already running")

	// ErrNoSession indicates that no session has been started yet.
	ErrNoSession = errors.New("no session")

	// ErrCancelled ends a session that was abandoned before its last file.
	ErrCancelled = errors.New("session cancelled")

	// ErrNotDirectory indicates that a generate root is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrInvalidSize indicates that a size string could not be parsed.
	ErrInvalidSize = errors.New("invalid size format")
)

// MalformedLineError reports a manifest line without a digest/path split.
// Line is 1-based.
type MalformedLineError struct {
	Line int
	Text string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed manifest line %d: %q", e.Line, e.Text)
}

// IOError reports a failure to read a file or directory.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseSize parses a human-readable size such as "16KiB", "64k" or "1MB".
// Units follow go-humanize: KiB is 1024 bytes, KB and K are 1000.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
