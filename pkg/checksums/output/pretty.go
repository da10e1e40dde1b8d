package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// PrettyFormatter renders a styled report for terminals.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	if r.Generate() && r.Output != "" && r.Error == "" && !r.Cancelled {
		w.WriteString("\n")
		w.WriteString(SuccessStyle.Render("Done! File saved to " + r.Output))
		w.WriteString("\n")
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	var lines []string

	title := "Verify"
	targetLabel := "Manifest:"
	if r.Generate() {
		title = "Generate"
		targetLabel = "Root:"
	}
	lines = append(lines, TitleStyle.Render(title))
	lines = append(lines, LabelStyle.Render(targetLabel)+" "+ValueStyle.Render(r.Target))
	if r.Output != "" {
		lines = append(lines, LabelStyle.Render("Output:")+" "+ValueStyle.Render(r.Output))
	}

	switch {
	case r.Error != "":
		lines = append(lines, ErrorStyle.Bold(true).Render("Failed: "+r.Error))
	case r.Cancelled:
		lines = append(lines, WarningStyle.Bold(true).Render("Cancelled by user"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Report) string {
	if len(r.Entries) == 0 {
		return MutedStyle.Render("  No files") + "\n"
	}

	var sb strings.Builder
	if r.Generate() {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			TableHeaderStyle.Render(padRight("DIGEST", 32)), TableHeaderStyle.Render("PATH")))
		for _, e := range r.Entries {
			sb.WriteString(fmt.Sprintf("  %s  %s\n",
				DigestStyle.Render(padRight(e.Digest, 32)), PathStyle.Render(e.Path)))
		}
		return sb.String()
	}

	const width = len("MISSING")
	sb.WriteString(fmt.Sprintf("  %s  %s\n",
		TableHeaderStyle.Render(padRight("STATUS", width)), TableHeaderStyle.Render("PATH")))
	for _, e := range r.Entries {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			KindStyle(e.Kind).Render(padRight(e.Kind.String(), width)), PathStyle.Render(e.Path)))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Report) string {
	var parts []string

	if r.Generate() {
		parts = append(parts, LabelStyle.Render("Hashed:")+" "+
			ValueStyle.Render(fmt.Sprintf("%s/%s", humanize.Comma(int64(r.Counters.Pass)), humanize.Comma(int64(r.Total)))))
		if r.Counters.Missing > 0 {
			parts = append(parts, KindStyle(types.KindMissing).Render(fmt.Sprintf("vanished %d", r.Counters.Missing)))
		}
	} else {
		parts = append(parts,
			KindStyle(types.KindPass).Render(fmt.Sprintf("pass %s", humanize.Comma(int64(r.Counters.Pass)))),
			KindStyle(types.KindMissing).Render(fmt.Sprintf("missing %s", humanize.Comma(int64(r.Counters.Missing)))),
			KindStyle(types.KindBad).Render(fmt.Sprintf("bad %s", humanize.Comma(int64(r.Counters.Bad)))),
			LabelStyle.Render("of")+" "+ValueStyle.Render(humanize.Comma(int64(r.Total))),
		)
	}

	parts = append(parts, LabelStyle.Render("Read:")+" "+ValueStyle.Render(humanize.IBytes(uint64(r.Bytes))))
	if r.Duration > 0 {
		parts = append(parts, LabelStyle.Render("in")+" "+ValueStyle.Render(FormatDuration(r.Duration)))
	}

	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// FormatDuration formats a duration for people.
func FormatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
