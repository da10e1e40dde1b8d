package output

import (
	"bytes"
	"strings"
	"text/tabwriter"
)

// PlainFormatter writes an aligned two-column table without styling:
// STATUS and PATH for verify, DIGEST and PATH for generate.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	header, rows := columns(r)
	if _, err := tw.Write([]byte(strings.Join(header, "\t") + "\n")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := tw.Write([]byte(strings.Join(row, "\t") + "\n")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// columns returns the header and rows shared by the tabular formatters.
func columns(r *Report) ([]string, [][]string) {
	rows := make([][]string, len(r.Entries))
	if r.Generate() {
		for i, e := range r.Entries {
			rows[i] = []string{e.Digest, e.Path}
		}
		return []string{"DIGEST", "PATH"}, rows
	}
	for i, e := range r.Entries {
		rows[i] = []string{e.Kind.String(), e.Path}
	}
	return []string{"STATUS", "PATH"}, rows
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
