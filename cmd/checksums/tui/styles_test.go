package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

func TestRepeatChar(t *testing.T) {
	tests := []struct {
		char     rune
		n        int
		expected string
	}{
		{'a', 0, ""},
		{'a', -1, ""},
		{'a', 5, "aaaaa"},
		{'─', 3, "───"},
	}

	for _, tt := range tests {
		if result := repeatChar(tt.char, tt.n); result != tt.expected {
			t.Errorf("repeatChar(%q, %d) = %q, want %q", tt.char, tt.n, result, tt.expected)
		}
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path     string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"/very/long/path/to/file.txt", 20, ".../path/to/file.txt"},
		{"abcd", 3, "abc"},
		{"abcdef", 4, "...f"},
	}

	for _, tt := range tests {
		if result := truncatePath(tt.path, tt.maxLen); result != tt.expected {
			t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.maxLen, result, tt.expected)
		}
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		s        string
		width    int
		expected string
	}{
		{"abc", 7, "  abc  "},
		{"abc", 6, " abc  "},
		{"abc", 2, "abc"},
		{"", 4, "    "},
	}

	for _, tt := range tests {
		if result := center(tt.s, tt.width); result != tt.expected {
			t.Errorf("center(%q, %d) = %q, want %q", tt.s, tt.width, result, tt.expected)
		}
	}
}

func TestKindStyle(t *testing.T) {
	for _, k := range []types.Kind{types.KindPass, types.KindMissing, types.KindBad} {
		if got := kindStyle(k).Render(k.String()); !strings.Contains(got, k.String()) {
			t.Errorf("kindStyle(%v) lost its text: %q", k, got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(95 * time.Second); got != "1:35" {
		t.Errorf("formatDuration = %q, want 1:35", got)
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		processed, total int
		want             float64
	}{
		{0, 0, 0},
		{1, 4, 0.25},
		{5, 4, 1},
	}
	for _, tt := range tests {
		if got := fraction(tt.processed, tt.total); got != tt.want {
			t.Errorf("fraction(%d, %d) = %v, want %v", tt.processed, tt.total, got, tt.want)
		}
	}
}

func TestRenderStats(t *testing.T) {
	out := renderStats(types.ModeVerify, 3, 10, types.Counters{Pass: 1, Missing: 1, Bad: 1}, 2048, time.Minute, 120)
	for _, want := range []string{"Files", "3/10", "Pass", "Missing", "Bad", "2.0 KiB", "1:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats missing %q:\n%s", want, out)
		}
	}

	out = renderStats(types.ModeGenerate, 1, 1, types.Counters{Pass: 1}, 5, 0, 120)
	if strings.Contains(out, "Bad") {
		t.Errorf("generate stats should not show Bad:\n%s", out)
	}
}
