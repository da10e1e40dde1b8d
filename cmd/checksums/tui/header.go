package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// renderAppHeader renders the title line: mode, target and key hint.
func renderAppHeader(mode types.Mode, target, hint string, width int) string {
	name := "VERIFY"
	if mode == types.ModeGenerate {
		name = "GENERATE"
	}
	title := titleStyle.Render(" # CHECKSUMS ") + titleStyle.Bold(false).Render(name)
	hintStr := mutedTextStyle.Render(hint)

	room := width - lipgloss.Width(title) - lipgloss.Width(hintStr) - 2
	targetStr := ""
	if room > 10 {
		targetStr = "  " + mutedTextStyle.Render(truncatePath(target, room))
	}

	spacing := width - lipgloss.Width(title) - lipgloss.Width(targetStr) - lipgloss.Width(hintStr)
	if spacing < 1 {
		spacing = 1
	}
	return title + targetStr + strings.Repeat(" ", spacing) + hintStr
}

// renderStats renders the counter boxes. Generate sessions show no pass or
// bad boxes since nothing is compared.
func renderStats(mode types.Mode, processed, total int, c types.Counters, bytes int64, elapsed time.Duration, totalWidth int) string {
	type stat struct{ label, value string }
	stats := []stat{
		{"Files", fmt.Sprintf("%s/%s", humanize.Comma(int64(processed)), humanize.Comma(int64(total)))},
	}
	if mode == types.ModeVerify {
		stats = append(stats,
			stat{"Pass", humanize.Comma(int64(c.Pass))},
			stat{"Missing", humanize.Comma(int64(c.Missing))},
			stat{"Bad", humanize.Comma(int64(c.Bad))},
		)
	} else {
		stats = append(stats, stat{"Gone", humanize.Comma(int64(c.Missing))})
	}
	stats = append(stats,
		stat{"Hashed", types.FormatSize(bytes)},
		stat{"Time", formatDuration(elapsed)},
	)

	boxWidth := (totalWidth - 2 - len(stats)) / len(stats)
	if boxWidth < 10 {
		boxWidth = 10
	}

	boxes := []string{"  "}
	for i, s := range stats {
		if i > 0 {
			boxes = append(boxes, " ")
		}
		boxes = append(boxes, renderStatBox(s.label, s.value, boxWidth))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

// renderStatBox renders a single stat box.
func renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		center(statsLabelStyle.Render(label), width-4),
		center(statsValueStyle.Render(value), width-4))
	return statsBoxStyle.Width(width).Render(content)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// fraction returns processed/total clamped to [0, 1].
func fraction(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(processed) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}
