package output

import "strings"

// document is the shape shared by the json and yaml formatters.
type document struct {
	Entries []docEntry `json:"entries" yaml:"entries"`
	Summary docSummary `json:"summary" yaml:"summary"`
	Meta    docMeta    `json:"meta" yaml:"meta"`
}

type docEntry struct {
	Path   string `json:"path" yaml:"path"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	Digest string `json:"digest,omitempty" yaml:"digest,omitempty"`
}

type docSummary struct {
	Pass      int    `json:"pass" yaml:"pass"`
	Missing   int    `json:"missing" yaml:"missing"`
	Bad       int    `json:"bad" yaml:"bad"`
	Processed int    `json:"processed" yaml:"processed"`
	Total     int    `json:"total" yaml:"total"`
	Bytes     int64  `json:"bytes" yaml:"bytes"`
	Duration  string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Clean     bool   `json:"clean" yaml:"clean"`
}

type docMeta struct {
	Session   string   `json:"session,omitempty" yaml:"session,omitempty"`
	Mode      string   `json:"mode" yaml:"mode"`
	Target    string   `json:"target" yaml:"target"`
	Output    string   `json:"output,omitempty" yaml:"output,omitempty"`
	Cancelled bool     `json:"cancelled" yaml:"cancelled"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newDocEntry(r *Report, e Entry) docEntry {
	d := docEntry{Path: e.Path, Digest: e.Digest}
	if !r.Generate() {
		d.Status = strings.ToLower(e.Kind.String())
	}
	return d
}

func buildDocument(r *Report) document {
	entries := make([]docEntry, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = newDocEntry(r, e)
	}

	return document{
		Entries: entries,
		Summary: docSummary{
			Pass:      r.Counters.Pass,
			Missing:   r.Counters.Missing,
			Bad:       r.Counters.Bad,
			Processed: r.Processed,
			Total:     r.Total,
			Bytes:     r.Bytes,
			Duration:  formatDurationString(r.Duration),
			Clean:     r.Clean(),
		},
		Meta: docMeta{
			Session:   r.Session,
			Mode:      r.Mode.String(),
			Target:    r.Target,
			Output:    r.Output,
			Cancelled: r.Cancelled,
			Error:     r.Error,
			Warnings:  r.Warnings,
		},
	}
}
