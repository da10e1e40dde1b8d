package report

import (
	"sync"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// MemorySink keeps records in memory. It replays without touching disk.
type MemorySink struct {
	mu      sync.RWMutex
	root    string
	resets  int
	records []Record
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Reset drops all records.
func (s *MemorySink) Reset(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.resets++
	s.records = nil
	return nil
}

// Open returns a commit that performs Reset.
func (s *MemorySink) Open(root string) (func() error, error) {
	return func() error { return s.Reset(root) }, nil
}

// Append stores rec.
func (s *MemorySink) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Replay returns the stored records selected by filter.
func (s *MemorySink) Replay(filter types.KindSet) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Has(rec.Kind) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }

// Root returns the root passed to the last Reset.
func (s *MemorySink) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Resets returns how many times Reset has been called.
func (s *MemorySink) Resets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resets
}

var _ Sink = (*MemorySink)(nil)
