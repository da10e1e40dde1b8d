package dispatch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/checksums/pkg/checksums/digest"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

const waitTimeout = 2 * time.Second

// recorder is a Handler that keeps every callback.
type recorder struct {
	mu       sync.Mutex
	results  []Result
	failWith error
	done     chan error
}

func newRecorder() *recorder {
	return &recorder{done: make(chan error, 1)}
}

func (r *recorder) OnResult(res Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return r.failWith
}

func (r *recorder) OnComplete(err error) {
	r.done <- err
}

func (r *recorder) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

func (r *recorder) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for OnComplete")
		return nil
	}
}

// gatedEngine blocks DigestFile for paths with a gate until it is released.
type gatedEngine struct {
	mu      sync.Mutex
	calls   []string
	gates   map[string]chan struct{}
	errs    map[string]error
	started chan string
}

func newGatedEngine() *gatedEngine {
	return &gatedEngine{
		gates:   make(map[string]chan struct{}),
		errs:    make(map[string]error),
		started: make(chan string, 64),
	}
}

func (g *gatedEngine) gate(path string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[path] = ch
	return ch
}

func (g *gatedEngine) DigestFile(path string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, path)
	gate := g.gates[path]
	err := g.errs[path]
	g.mu.Unlock()

	g.started <- path
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return "digest:" + filepath.Base(path), nil
}

func (g *gatedEngine) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func waitStarted(t *testing.T, g *gatedEngine, want string) {
	t.Helper()
	select {
	case got := <-g.started:
		require.Equal(t, want, got)
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for digest of %s", want)
	}
}

// makeItems creates the named files under dir; names starting with "!"
// are listed but not created.
func makeItems(t *testing.T, dir string, names ...string) []Item {
	t.Helper()
	items := make([]Item, len(names))
	for i, name := range names {
		missing := name[0] == '!'
		if missing {
			name = name[1:]
		}
		abs := filepath.Join(dir, name)
		if !missing {
			require.NoError(t, os.WriteFile(abs, []byte(name), 0o644))
		}
		items[i] = Item{Path: name, Abs: abs}
	}
	return items
}

func TestDispatcher_ProcessesInOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	items := makeItems(t, dir, "a", "!ghost", "b", "c", "!gone", "d")

	engine := newGatedEngine()
	d := New(engine)
	defer d.Close()

	rec := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: items, Handler: rec}))
	require.NoError(t, rec.wait(t))

	results := rec.Results()
	require.Len(t, results, len(items))
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, items[i], res.Item)
	}
	assert.True(t, results[1].Missing)
	assert.True(t, results[4].Missing)
	assert.Empty(t, results[1].Digest)
	assert.Equal(t, "digest:a", results[0].Digest)
	assert.Equal(t, int64(1), results[0].Size)

	// Missing files are never hashed.
	assert.Equal(t, []string{items[0].Abs, items[2].Abs, items[3].Abs, items[5].Abs}, engine.Calls())
	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, len(items), d.Cursor())
}

func TestDispatcher_RealEngine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), nil, 0o644))

	d := New(digest.New())
	defer d.Close()

	rec := newRecorder()
	items := []Item{{Path: "empty.txt", Abs: filepath.Join(dir, "empty.txt")}}
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: items, Handler: rec}))
	require.NoError(t, rec.wait(t))

	require.Len(t, rec.Results(), 1)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", rec.Results()[0].Digest)
}

func TestDispatcher_EmptyRunCompletesImmediately(t *testing.T) {
	t.Parallel()
	d := New(newGatedEngine())
	defer d.Close()

	rec := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Handler: rec}))

	// OnComplete already ran inside Start.
	select {
	case err := <-rec.done:
		assert.NoError(t, err)
	default:
		t.Fatal("empty run should complete during Start")
	}
	assert.Equal(t, StateIdle, d.State())
}

func TestDispatcher_DirectoryIsMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), nil, 0o644))

	engine := newGatedEngine()
	d := New(engine)
	defer d.Close()

	rec := newRecorder()
	items := []Item{
		{Path: "sub", Abs: filepath.Join(dir, "sub")},
		{Path: "file/below", Abs: filepath.Join(dir, "file", "below")},
	}
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: items, Handler: rec}))
	require.NoError(t, rec.wait(t))

	for _, res := range rec.Results() {
		assert.True(t, res.Missing, res.Item.Path)
	}
	assert.Empty(t, engine.Calls())
}

func TestDispatcher_RejectsSecondStart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	items := makeItems(t, dir, "slow")

	engine := newGatedEngine()
	release := engine.gate(items[0].Abs)
	d := New(engine)
	defer d.Close()

	rec := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: items, Handler: rec}))
	waitStarted(t, engine, items[0].Abs)

	err := d.Start(Run{ID: uuid.New(), Items: items, Handler: newRecorder()})
	assert.ErrorIs(t, err, types.ErrSessionRunning)
	assert.Equal(t, StateRunning, d.State())

	close(release)
	require.NoError(t, rec.wait(t))
}

func TestDispatcher_CancelDropsLateResult(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	itemsA := makeItems(t, dir, "a1", "a2")
	itemsB := makeItems(t, dir, "b1", "b2")

	engine := newGatedEngine()
	releaseA := engine.gate(itemsA[0].Abs)
	d := New(engine)
	defer d.Close()

	recA := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: itemsA, Handler: recA}))
	waitStarted(t, engine, itemsA[0].Abs)

	assert.True(t, d.Cancel())
	assert.ErrorIs(t, recA.wait(t), types.ErrCancelled)
	assert.Equal(t, StateDraining, d.State())

	recB := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: itemsB, Handler: recB}))
	assert.Equal(t, StateRunning, d.State())

	// B cannot hash anything until A's digest is out of the way.
	select {
	case path := <-engine.started:
		t.Fatalf("digest of %s started while another was in flight", path)
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseA)
	require.NoError(t, recB.wait(t))

	assert.Empty(t, recA.Results(), "late result must not reach the cancelled run")
	resultsB := recB.Results()
	require.Len(t, resultsB, 2)
	assert.Equal(t, "b1", resultsB[0].Item.Path)
	assert.Equal(t, "b2", resultsB[1].Item.Path)
	assert.Equal(t, StateIdle, d.State())
	assert.NotContains(t, engine.Calls(), itemsA[1].Abs)
}

func TestDispatcher_CancelThenDrainToIdle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	items := makeItems(t, dir, "only")

	engine := newGatedEngine()
	release := engine.gate(items[0].Abs)
	d := New(engine)
	defer d.Close()

	rec := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: items, Handler: rec}))
	waitStarted(t, engine, items[0].Abs)
	d.Cancel()
	assert.Equal(t, StateDraining, d.State())

	close(release)
	assert.Eventually(t, func() bool { return d.State() == StateIdle }, waitTimeout, 5*time.Millisecond)
	assert.False(t, d.Cancel(), "nothing left to cancel")
}

func TestDispatcher_ReadFailureIsFatal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	items := makeItems(t, dir, "ok", "broken", "never")

	engine := newGatedEngine()
	readErr := &types.IOError{Path: items[1].Abs, Err: errors.New("input/output error")}
	engine.errs[items[1].Abs] = readErr

	d := New(engine)
	defer d.Close()

	rec := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: items, Handler: rec}))

	err := rec.wait(t)
	assert.ErrorIs(t, err, readErr)
	require.Len(t, rec.Results(), 1)
	assert.Equal(t, "ok", rec.Results()[0].Item.Path)
	assert.NotContains(t, engine.Calls(), items[2].Abs)
}

func TestDispatcher_StatFailureIsFatal(t *testing.T) {
	t.Parallel()
	denied := errors.New("permission denied")
	d := New(newGatedEngine(), WithStat(func(string) (fs.FileInfo, error) {
		return nil, denied
	}))
	defer d.Close()

	rec := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: []Item{{Path: "x", Abs: "/x"}}, Handler: rec}))

	err := rec.wait(t)
	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "/x", ioErr.Path)
	assert.ErrorIs(t, err, denied)
	assert.Empty(t, rec.Results())
}

func TestDispatcher_HandlerErrorStopsRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	items := makeItems(t, dir, "a", "b")

	d := New(newGatedEngine())
	defer d.Close()

	stop := errors.New("disk full")
	rec := newRecorder()
	rec.failWith = stop
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: items, Handler: rec}))

	assert.ErrorIs(t, rec.wait(t), stop)
	assert.Len(t, rec.Results(), 1)
}

func TestDispatcher_Close(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	items := makeItems(t, dir, "stuck")

	engine := newGatedEngine()
	release := engine.gate(items[0].Abs)
	defer close(release)

	d := New(engine)
	rec := newRecorder()
	require.NoError(t, d.Start(Run{ID: uuid.New(), Items: items, Handler: rec}))
	waitStarted(t, engine, items[0].Abs)

	d.Close()
	d.Close()
	assert.ErrorIs(t, rec.wait(t), types.ErrCancelled)
	assert.ErrorIs(t, d.Start(Run{ID: uuid.New(), Handler: newRecorder()}), ErrClosed)
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "unknown", State(9).String())
}
