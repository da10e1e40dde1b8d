package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/checksums/pkg/checksums/config"
	"github.com/jamesainslie/checksums/pkg/checksums/session"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

const helloMD5 = "5d41402abc4b2a76b9719d911017c592" // "hello"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ChunkSize:    "4KiB",
		ManifestName: config.DefaultManifestName,
		LogName:      config.DefaultLogName,
		Exclude:      []string{".git"},
		History: config.HistoryConfig{
			Enabled:       true,
			Path:          filepath.Join(t.TempDir(), "history"),
			RetentionDays: 30,
		},
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func wait(t *testing.T, s *session.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "session did not finish")
}

func TestRunner_Verify(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.txt"), "hello")
	write(t, filepath.Join(dir, "b.txt"), "changed")
	manifestPath := filepath.Join(dir, "sums.md5")
	write(t, manifestPath, helloMD5+" *a.txt\n"+helloMD5+" *b.txt\n"+helloMD5+" *gone.txt\n")

	r, err := newRunner(testConfig(t))
	require.NoError(t, err)
	defer r.Close()

	s, err := r.ctrl.BeginVerify(manifestPath)
	require.NoError(t, err)
	wait(t, s)

	rep := r.buildReport(s, types.NewKindSet(types.KindMissing, types.KindBad))
	assert.Equal(t, types.Counters{Pass: 1, Missing: 1, Bad: 1}, rep.Counters)
	assert.Equal(t, filepath.Join(dir, config.DefaultLogName), rep.Output)
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, "b.txt", rep.Entries[0].Path)
	assert.Equal(t, types.KindMissing, rep.Entries[1].Kind)

	assert.ErrorIs(t, sessionResult(s), errUnclean)

	records, err := r.history.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, s.ID.String(), records[0].ID)
}

func TestRunner_Generate(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "b.txt"), "hello")
	write(t, filepath.Join(root, ".git", "HEAD"), "ref")
	write(t, filepath.Join(root, config.DefaultLogName), "old log")

	cfg := testConfig(t)
	cfg.History.Enabled = false
	r, err := newRunner(cfg)
	require.NoError(t, err)
	defer r.Close()
	assert.Nil(t, r.history)

	s, err := r.ctrl.BeginGenerate(context.Background(), root)
	require.NoError(t, err)
	wait(t, s)

	rep := r.buildReport(s, types.AllKinds)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, "b.txt", rep.Entries[0].Path)
	assert.Equal(t, helloMD5, rep.Entries[0].Digest)
	assert.True(t, rep.Clean())
	assert.NoError(t, sessionResult(s))
}

func TestRunner_BadChunkSize(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChunkSize = "lots"
	_, err := newRunner(cfg)
	assert.ErrorIs(t, err, types.ErrInvalidSize)
}

func TestSessionResult_Cancelled(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "sums.md5")
	write(t, manifestPath, helloMD5+" *a.txt\n")

	cfg := testConfig(t)
	cfg.History.Enabled = false
	r, err := newRunner(cfg)
	require.NoError(t, err)
	defer r.Close()

	s, err := r.ctrl.BeginVerify(manifestPath)
	require.NoError(t, err)
	r.ctrl.Cancel()
	wait(t, s)

	// The session may already have finished before Cancel.
	if s.Cancelled() {
		assert.ErrorIs(t, sessionResult(s), types.ErrCancelled)
		assert.True(t, r.buildReport(s, types.AllKinds).Cancelled)
	}
}
