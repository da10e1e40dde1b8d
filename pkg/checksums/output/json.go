package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter writes the report as one indented JSON document with
// entries, summary and meta sections.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact JSON object per entry, for jq and
// other line-oriented tools.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, e := range r.Entries {
		data, err := json.Marshal(newDocEntry(r, e))
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

var _ Formatter = (*JSONLFormatter)(nil)
