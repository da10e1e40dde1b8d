package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

const emptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []Entry
	}{
		{
			name: "single entry with marker",
			text: emptyMD5 + " *empty.txt",
			want: []Entry{{Path: "empty.txt", Digest: emptyMD5}},
		},
		{
			name: "marker is optional",
			text: emptyMD5 + " empty.txt",
			want: []Entry{{Path: "empty.txt", Digest: emptyMD5}},
		},
		{
			name: "only the first marker is stripped",
			text: emptyMD5 + " **star",
			want: []Entry{{Path: "*star", Digest: emptyMD5}},
		},
		{
			name: "marker inside path is kept",
			text: emptyMD5 + " a*b",
			want: []Entry{{Path: "a*b", Digest: emptyMD5}},
		},
		{
			name: "path keeps inner spaces",
			text: emptyMD5 + " *dir/with space.txt",
			want: []Entry{{Path: "dir/with space.txt", Digest: emptyMD5}},
		},
		{
			name: "comments and blank lines are skipped",
			text: "; header\n\n" + emptyMD5 + " *a\n;trailer\n",
			want: []Entry{{Path: "a", Digest: emptyMD5}},
		},
		{
			name: "crlf line endings",
			text: "; header\r\n" + emptyMD5 + " *a\r\n" + emptyMD5 + " *b\r\n",
			want: []Entry{{Path: "a", Digest: emptyMD5}, {Path: "b", Digest: emptyMD5}},
		},
		{
			name: "tab separator",
			text: emptyMD5 + "\tfile",
			want: []Entry{{Path: "file", Digest: emptyMD5}},
		},
		{
			name: "digest is lowercased",
			text: strings.ToUpper(emptyMD5) + " *a",
			want: []Entry{{Path: "a", Digest: emptyMD5}},
		},
		{
			name: "byte order mark is ignored",
			text: "\ufeff" + emptyMD5 + " *a",
			want: []Entry{{Path: "a", Digest: emptyMD5}},
		},
		{
			name: "duplicate keeps position and takes last digest",
			text: "aaa *x\nbbb *y\nccc *x",
			want: []Entry{{Path: "x", Digest: "ccc"}, {Path: "y", Digest: "bbb"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			got := m.Entries()
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() got %d entries, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "; only comments", "\n\n", "; a\n; b\n"} {
		_, err := Parse(text)
		if !errors.Is(err, types.ErrEmptyManifest) {
			t.Errorf("Parse(%q) error = %v, want ErrEmptyManifest", text, err)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		line int
	}{
		{name: "no whitespace", text: "onlydigestnopath", line: 1},
		{name: "after comment", text: "; header\n" + emptyMD5 + " *ok\nonlydigestnopath", line: 3},
		{name: "empty remainder", text: emptyMD5 + " ", line: 1},
		{name: "marker only", text: emptyMD5 + " *", line: 1},
		{name: "leading space", text: " path", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.text)
			var mErr *types.MalformedLineError
			if !errors.As(err, &mErr) {
				t.Fatalf("Parse() error = %v, want MalformedLineError", err)
			}
			if mErr.Line != tt.line {
				t.Errorf("MalformedLineError.Line = %d, want %d", mErr.Line, tt.line)
			}
		})
	}
}

func TestFormatEntry_RoundTrip(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{Path: "a.txt", Digest: emptyMD5},
		{Path: "sub/dir/b.bin", Digest: "0cc175b9c0f1b6a831c399e269772661"},
		{Path: "name with spaces", Digest: "92eb5ffee6ae2fec3ad71c777531578f"},
		{Path: "*starred", Digest: "4a8a08f09d37b73795649038408b5f33"},
	}

	var b strings.Builder
	b.WriteString(Header())
	for _, e := range entries {
		b.WriteString("\n" + FormatEntry(e.Digest, e.Path))
	}

	m, err := Parse(b.String())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.Len() != len(entries) {
		t.Fatalf("Len() = %d, want %d", m.Len(), len(entries))
	}
	for _, e := range entries {
		got, ok := m.Lookup(e.Path)
		if !ok || got != e.Digest {
			t.Errorf("Lookup(%q) = %q, %v; want %q", e.Path, got, ok, e.Digest)
		}
	}
}

func TestHeader(t *testing.T) {
	t.Parallel()

	h := Header()
	for _, line := range strings.Split(h, "\n") {
		if !strings.HasPrefix(line, ";") {
			t.Errorf("header line %q is not a comment", line)
		}
	}
	if strings.HasSuffix(h, "\n") {
		t.Error("Header() should not end with a newline")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "sums.md5")
		if err := os.WriteFile(path, []byte(emptyMD5+" *empty.txt\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		m, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if _, ok := m.Lookup("empty.txt"); !ok {
			t.Error("Lookup(empty.txt) not found")
		}
	})

	t.Run("missing file is an IOError", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "nope.md5"))
		var ioErr *types.IOError
		if !errors.As(err, &ioErr) {
			t.Fatalf("Load() error = %v, want IOError", err)
		}
	})

	t.Run("codec errors keep their type", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "sums.md5")
		if err := os.WriteFile(path, []byte("; nothing\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if !errors.Is(err, types.ErrEmptyManifest) {
			t.Fatalf("Load() error = %v, want ErrEmptyManifest", err)
		}
	})
}

func TestWriter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", DefaultName)
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := w.Append(emptyMD5, "a.txt"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := w.Append(emptyMD5, "b/c.txt"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if w.Count() != 2 {
		t.Errorf("Count() = %d, want 2", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := w.Append(emptyMD5, "late"); err == nil {
		t.Error("Append() after Close() should fail")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Header() + "\n" + emptyMD5 + " *a.txt\n" + emptyMD5 + " *b/c.txt"
	if string(data) != want {
		t.Errorf("file contents = %q, want %q", data, want)
	}
}

func TestWriter_OpenDefersTruncation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultName)
	old := Header() + "\n" + emptyMD5 + " *old.txt"
	if err := os.WriteFile(path, []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != old {
		t.Errorf("Open() changed the existing manifest: %q", data)
	}

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := w.Append(emptyMD5, "new.txt"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, _ = os.ReadFile(path)
	if want := Header() + "\n" + emptyMD5 + " *new.txt"; string(data) != want {
		t.Errorf("file contents = %q, want %q", data, want)
	}
}

func TestOpen_Directory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultName)
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open() on a directory should fail")
	}
}
