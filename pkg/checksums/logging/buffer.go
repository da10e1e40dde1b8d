package logging

import "sync"

// DefaultBufferSize is the number of entries kept for the TUI log pane.
const DefaultBufferSize = 200

// LogBuffer is a fixed-size ring of recent log entries.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewLogBuffer creates a buffer holding up to size entries.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &LogBuffer{entries: make([]LogEntry, size)}
}

// Add stores entry, overwriting the oldest one when full.
func (b *LogBuffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = entry
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of stored entries.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Last returns up to n of the newest entries, oldest first.
func (b *LogBuffer) Last(n int) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.next
	if b.full {
		count = len(b.entries)
	}
	if n > count || n < 0 {
		n = count
	}

	out := make([]LogEntry, n)
	start := b.next - n
	for i := range out {
		out[i] = b.entries[(start+i+len(b.entries))%len(b.entries)]
	}
	return out
}

// Entries returns every stored entry, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	return b.Last(-1)
}
