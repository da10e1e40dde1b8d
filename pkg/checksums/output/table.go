package output

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// TSVFormatter writes tab-separated values. Generate reports come out as
// "<digest>\t<path>" lines after the header.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	header, rows := columns(r)
	w.WriteString(strings.Join(header, "\t"))
	w.WriteByte('\n')
	for _, row := range rows {
		w.WriteString(strings.Join(row, "\t"))
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter writes RFC 4180 comma-separated values.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	writer := csv.NewWriter(w)

	header, rows := columns(r)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter writes a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Report) error {
	header, rows := columns(r)

	w.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "------"
	}
	w.WriteString("|" + strings.Join(sep, "|") + "|\n")

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escapeMarkdownPipe(c)
		}
		w.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return nil
}

// escapeMarkdownPipe escapes pipe characters for Markdown tables.
func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var _ Formatter = (*MarkdownFormatter)(nil)
