package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/checksums/pkg/checksums/logging"
)

type levelBadge struct {
	glyph string
	style lipgloss.Style
}

var levelBadges = map[logging.Level]levelBadge{
	logging.LevelDebug: {"D", logDebugStyle},
	logging.LevelInfo:  {"I", logInfoStyle},
	logging.LevelWarn:  {"W", logWarnStyle},
	logging.LevelError: {"E", logErrorStyle},
}

var levelKeys = map[string]logging.Level{
	"d": logging.LevelDebug,
	"i": logging.LevelInfo,
	"w": logging.LevelWarn,
	"e": logging.LevelError,
}

func badge(level logging.Level) string {
	b, ok := levelBadges[level]
	if !ok {
		return "[?]"
	}
	return b.style.Render("[" + b.glyph + "]")
}

// atLeast returns the entries whose level is floor or higher.
func atLeast(entries []logging.LogEntry, floor logging.Level) []logging.LogEntry {
	out := make([]logging.LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Level >= floor {
			out = append(out, e)
		}
	}
	return out
}

// clampOffset keeps a scroll offset inside [0, total-rows].
func clampOffset(offset, total, rows int) int {
	last := total - rows
	switch {
	case last <= 0 || offset < 0:
		return 0
	case offset > last:
		return last
	default:
		return offset
	}
}

// logPane shows the in-process log buffer below the record list.
// It sticks to the newest entry until scrolled up.
type logPane struct {
	open   bool
	level  logging.Level
	offset int
	follow bool
	source func() []logging.LogEntry
}

func newLogPane(source func() []logging.LogEntry) *logPane {
	return &logPane{level: logging.LevelInfo, follow: true, source: source}
}

// bufferSource reads the TUI log buffer.
func bufferSource() []logging.LogEntry {
	if buf := logging.Buffer(); buf != nil {
		return buf.Entries()
	}
	return nil
}

func (p *logPane) toggle() {
	p.open = !p.open
	p.follow = true
}

func (p *logPane) entries() []logging.LogEntry {
	if p.source == nil {
		return nil
	}
	return atLeast(p.source(), p.level)
}

// handleKey applies a key meant for the open pane. rows is the pane's
// visible entry count.
func (p *logPane) handleKey(key string, rows int) {
	if level, ok := levelKeys[key]; ok {
		p.level, p.offset, p.follow = level, 0, true
		return
	}
	switch key {
	case "up", "k":
		p.follow = false
		if p.offset > 0 {
			p.offset--
		}
	case "down", "j":
		last := len(p.entries()) - rows
		if p.offset < last {
			p.offset++
		}
		p.follow = p.offset >= last
	}
}

func (p *logPane) view(width, height int) string {
	if height < 3 {
		return ""
	}
	rows := height - 2
	entries := p.entries()

	offset := p.offset
	if p.follow {
		offset = len(entries)
	}
	offset = clampOffset(offset, len(entries), rows)
	end := min(offset+rows, len(entries))

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf(" Logs [%s] ", p.level)))
	b.WriteString(mutedTextStyle.Render("[d/i/w/e] level  [l] close"))
	b.WriteString("\n" + renderDivider(width) + "\n")
	for _, e := range entries[offset:end] {
		b.WriteString(renderLogEntry(e, width) + "\n")
	}
	b.WriteString(strings.Repeat("\n", rows-(end-offset)))
	return b.String()
}

// renderLogEntry renders "HH:MM:SS [L] component: message", cutting the
// component to 10 characters and the message to the remaining width.
func renderLogEntry(e logging.LogEntry, width int) string {
	comp := e.Component
	if len(comp) > 10 {
		comp = comp[:10]
	}
	room := max(width-len("15:04:05 [L] ")-len(comp)-2, 10)
	msg := e.Message
	if len(msg) > room {
		msg = msg[:room-3] + "..."
	}
	return fmt.Sprintf("%s %s %s: %s",
		logTimeStyle.Render(e.Time.Format("15:04:05")),
		badge(e.Level),
		logComponentStyle.Render(comp),
		msg)
}
