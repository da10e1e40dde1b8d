// Package manifest reads and writes checksum manifests.
//
// A manifest is line oriented UTF-8 text. Lines that are empty or start with
// ';' are ignored. Every other line is a digest, one separator and a path:
//
//	; comment
//	d41d8cd98f00b204e9800998ecf8427e *empty.txt
//
// The '*' before the path is optional on input and always written on output.
package manifest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// DefaultName is the file name used for generated manifests.
const DefaultName = "files_checksum.md5"

const (
	commentMarker = ';'
	binaryMarker  = '*'
	byteOrderMark = "\ufeff"
)

var banner = []string{
	"; Generated by Firyst's checksums v1.0",
	"; Thanks)",
}

// Entry is a single path and the digest expected for it.
type Entry struct {
	Path   string `json:"path" yaml:"path"`
	Digest string `json:"digest" yaml:"digest"`
}

// Manifest is an ordered set of entries keyed by path.
// Order is the order in which paths were first declared.
type Manifest struct {
	entries []Entry
	index   map[string]int
}

// Parse parses manifest text.
//
// A duplicate path replaces the digest of the earlier entry and keeps its
// position. Line numbers in MalformedLineError are 1-based. A manifest
// without any entry fails with types.ErrEmptyManifest.
func Parse(text string) (*Manifest, error) {
	m := &Manifest{index: make(map[string]int)}

	text = strings.TrimPrefix(text, byteOrderMark)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || line[0] == commentMarker {
			continue
		}

		digest, path, ok := splitLine(line)
		if !ok {
			return nil, &types.MalformedLineError{Line: i + 1, Text: line}
		}
		m.set(path, strings.ToLower(digest))
	}

	if len(m.entries) == 0 {
		return nil, types.ErrEmptyManifest
	}
	return m, nil
}

// Read parses a manifest from r.
func Read(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Load reads and parses the manifest file at path.
// Read failures are reported as *types.IOError.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.IOError{Path: path, Err: err}
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// splitLine splits a line at its first space or tab. The remainder loses one
// leading binary marker and must not be empty.
func splitLine(line string) (digest, path string, ok bool) {
	cut := strings.IndexAny(line, " \t")
	if cut < 0 {
		return "", "", false
	}
	digest, path = line[:cut], line[cut+1:]
	if path != "" && path[0] == binaryMarker {
		path = path[1:]
	}
	if digest == "" || path == "" {
		return "", "", false
	}
	return digest, path, true
}

func (m *Manifest) set(path, digest string) {
	if i, ok := m.index[path]; ok {
		m.entries[i].Digest = digest
		return
	}
	m.index[path] = len(m.entries)
	m.entries = append(m.entries, Entry{Path: path, Digest: digest})
}

// Len returns the number of distinct paths.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the entries in declaration order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Lookup returns the expected digest for path.
func (m *Manifest) Lookup(path string) (string, bool) {
	i, ok := m.index[path]
	if !ok {
		return "", false
	}
	return m.entries[i].Digest, true
}

// Header returns the comment banner that starts a generated manifest.
// It carries no trailing newline; each entry is written newline-prefixed.
func Header() string {
	return strings.Join(banner, "\n")
}

// FormatEntry formats one manifest line without a line terminator.
func FormatEntry(digest, path string) string {
	return digest + " " + string(binaryMarker) + path
}
