package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
)

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"CHECKSUMS_LOG_NAME":        "verify.log",
		"CHECKSUMS_CHUNK_SIZE":      "1MiB",
		"CHECKSUMS_HISTORY_ENABLED": "",
		"UNRELATED":                 "x",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	got := envOverrides([]string{"log_name", "chunk_size", "history.enabled", "output"}, lookup)
	assert.Equal(t, []string{"CHECKSUMS_CHUNK_SIZE=1MiB", "CHECKSUMS_LOG_NAME=verify.log"}, got)
}

func TestEditorCommand(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"visual wins", map[string]string{"VISUAL": "code -w", "EDITOR": "nano"}, "code -w"},
		{"editor", map[string]string{"EDITOR": "nano"}, "nano"},
		{"fallback", nil, "vi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := editorCommand(func(k string) string { return tt.env[k] })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteConfig(t *testing.T) {
	cfg := &config.Config{ChunkSize: "16KiB", ManifestName: "files_checksum.md5", LogName: "checker_log.txt"}

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg, "", []string{"CHECKSUMS_OUTPUT=json"}))

	out := buf.String()
	assert.Contains(t, out, "# file: (none, using defaults)")
	assert.Contains(t, out, "# env:  CHECKSUMS_OUTPUT=json")
	assert.Contains(t, out, "chunk_size: 16KiB")
	assert.Contains(t, out, "manifest_name: files_checksum.md5")
}
