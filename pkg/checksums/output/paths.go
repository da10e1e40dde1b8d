package output

import (
	"bytes"
)

// PathsFormatter writes one path per line. Combined with a kind filter it
// lists, for example, every bad file for another tool to pick up.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, e := range r.Entries {
		w.WriteString(e.Path)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
}

var _ Formatter = (*PathsFormatter)(nil)

// NullFormatter writes paths separated by NUL bytes for xargs -0.
type NullFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *NullFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, e := range r.Entries {
		w.WriteString(e.Path)
		w.WriteByte(0)
	}
	return nil
}

func init() {
	Register("null", func() Formatter {
		return &NullFormatter{}
	})
}

var _ Formatter = (*NullFormatter)(nil)
