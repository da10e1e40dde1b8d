package tui

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/checksums/pkg/checksums/report"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// line is one row of the record list. Verify rows carry a kind, generate
// rows a digest.
type line struct {
	kind   types.Kind
	path   string
	digest string
}

// recordList holds every row seen so far and shows those whose kind is in
// the filter, following the tail unless the user scrolled up.
type recordList struct {
	all    []line
	filter types.KindSet
	offset int
	follow bool
}

func newRecordList(filter types.KindSet) recordList {
	return recordList{filter: filter, follow: true}
}

// add appends a row.
func (l *recordList) add(ln line) {
	l.all = append(l.all, ln)
}

// replace swaps in rows replayed from the log.
func (l *recordList) replace(records []report.Record) {
	l.all = l.all[:0]
	for _, rec := range records {
		l.all = append(l.all, line{kind: rec.Kind, path: rec.Path})
	}
}

// visible returns the rows that pass the filter. Generate rows always do.
func (l *recordList) visible() []line {
	out := make([]line, 0, len(l.all))
	for _, ln := range l.all {
		if ln.digest != "" || l.filter.Has(ln.kind) {
			out = append(out, ln)
		}
	}
	return out
}

// toggle flips k in the filter.
func (l *recordList) toggle(k types.Kind) {
	l.filter = l.filter.Toggle(k)
	l.follow = true
}

func (l *recordList) scrollUp(n int) {
	l.follow = false
	l.offset -= n
	if l.offset < 0 {
		l.offset = 0
	}
}

func (l *recordList) scrollDown(n, rows int) {
	l.offset += n
	if last := len(l.visible()) - rows; l.offset >= last {
		l.offset = last
		l.follow = true
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

// window returns the rows to draw in a pane of the given height.
func (l *recordList) window(rows int) []line {
	vis := l.visible()
	if rows <= 0 || len(vis) == 0 {
		return nil
	}
	start := l.offset
	if l.follow || start > len(vis)-rows {
		start = len(vis) - rows
	}
	if start < 0 {
		start = 0
	}
	end := start + rows
	if end > len(vis) {
		end = len(vis)
	}
	return vis[start:end]
}

// renderLine formats one row. Generate rows read "<digest>\t<path>".
func renderLine(ln line, width int) string {
	if ln.digest != "" {
		return digestStyle.Render(ln.digest) + "\t" + truncatePath(ln.path, width-40)
	}
	token := fmt.Sprintf("%-7s", ln.kind.String())
	return kindStyle(ln.kind).Render(token) + " " + truncatePath(ln.path, width-8)
}

// renderRecords draws the list pane.
func renderRecords(l *recordList, width, rows int) string {
	var b strings.Builder
	win := l.window(rows)
	for _, ln := range win {
		b.WriteString(renderLine(ln, width))
		b.WriteString("\n")
	}
	for i := len(win); i < rows; i++ {
		b.WriteString("\n")
	}
	return b.String()
}

// renderFilterBar shows the three kind toggles and their counts.
func renderFilterBar(filter types.KindSet, c types.Counters) string {
	items := []struct {
		key   string
		kind  types.Kind
		count int
	}{
		{"1", types.KindPass, c.Pass},
		{"2", types.KindMissing, c.Missing},
		{"3", types.KindBad, c.Bad},
	}

	parts := make([]string, 0, len(items))
	for _, it := range items {
		label := fmt.Sprintf("%s %d", it.kind.String(), it.count)
		style := kindStyle(it.kind)
		if !filter.Has(it.kind) {
			style = filterOffStyle
		}
		parts = append(parts, keyStyle.Render("["+it.key+"]")+" "+style.Render(label))
	}
	return "  " + strings.Join(parts, "   ")
}
