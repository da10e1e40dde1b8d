// Package report records verification results in an append-only log and
// replays filtered views of it.
//
// The log starts with a banner line followed by one record per line:
//
//	-= Firyst's checksums v1.0 =-
//	PASS a.txt
//	MISSING b.txt
//	BAD c.txt
package report

import (
	"strings"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// DefaultName is the log file name written next to the manifest.
const DefaultName = "checker_log.txt"

// Banner is the first line of every log.
const Banner = "-= Firyst's checksums v1.0 =-"

// Record is one classified file.
type Record struct {
	Kind types.Kind `json:"kind" yaml:"kind"`
	Path string     `json:"path" yaml:"path"`
}

// String formats the record as a log line without a terminator.
func (r Record) String() string {
	return r.Kind.String() + " " + r.Path
}

// ParseRecord parses a log line. Lines with fewer than two fields or an
// unknown leading token are rejected, which also rejects the banner.
// Everything after the single separator following the kind is the path,
// leading whitespace included.
func ParseRecord(line string) (Record, bool) {
	line = strings.TrimSuffix(line, "\r")
	if len(strings.Fields(line)) < 2 {
		return Record{}, false
	}

	token, path, _ := strings.Cut(line, " ")
	kind, ok := types.ParseKind(token)
	if !ok {
		return Record{}, false
	}
	return Record{Kind: kind, Path: path}, true
}

// Sink is an append-only record stream that can replay itself.
type Sink interface {
	// Reset truncates the stream kept under root and writes the banner.
	Reset(root string) error
	// Open readies the stream under root without touching the current one
	// and fails the way Reset would. The returned commit truncates it,
	// writes the banner and makes it current. Reset is Open then commit.
	Open(root string) (commit func() error, err error)
	// Append adds one record after all previous ones.
	Append(rec Record) error
	// Replay returns every record whose kind is in filter, in append order.
	Replay(filter types.KindSet) ([]Record, error)
	// Close releases the stream. The records stay readable through Replay.
	Close() error
}

// filterLines parses text and keeps the records selected by filter.
func filterLines(text string, filter types.KindSet) []Record {
	out := make([]Record, 0)
	for _, line := range strings.Split(text, "\n") {
		rec, ok := ParseRecord(line)
		if !ok || !filter.Has(rec.Kind) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
