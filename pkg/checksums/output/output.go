// Package output renders session reports in the formats selectable with
// --output (pretty, plain, json, jsonl, yaml, tsv, csv, markdown, paths,
// null, template).
//
// Formatters register themselves in a registry and are looked up by name:
//
//	formatter, err := output.Get("json")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, report); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// Entry is one file of a report. Verify entries carry the file's
// classification; generate entries carry the digest written to the manifest.
type Entry struct {
	Path   string
	Kind   types.Kind
	Digest string
}

// Report is the outcome of one session.
type Report struct {
	Session string
	Mode    types.Mode

	// Target is the manifest for verify and the root for generate.
	Target string
	// Output is the verify log or the generated manifest.
	Output string

	Entries   []Entry
	Counters  types.Counters
	Total     int
	Processed int
	Bytes     int64
	Duration  time.Duration

	Cancelled bool
	Error     string
	Warnings  []string
}

// Clean reports whether the session finished with nothing missing or bad.
func (r *Report) Clean() bool {
	return r.Error == "" && !r.Cancelled && r.Counters.Clean()
}

// Generate reports whether r describes a generate session.
func (r *Report) Generate() bool {
	return r.Mode == types.ModeGenerate
}

// Formatter renders a report.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a Formatter.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a factory, replacing any formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns the names in the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// formatDurationString formats a duration for machine-readable output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
