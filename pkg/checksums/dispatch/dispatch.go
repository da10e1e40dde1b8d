// Package dispatch drives a session's file list through the digest engine
// one file at a time.
//
// A Dispatcher owns two goroutines. The control goroutine holds all session
// state: it checks whether the file at the cursor exists, hands existing
// files to the worker, receives the worker's digest, calls the session's
// Handler and moves the cursor. The worker goroutine only computes digests
// and is never given a second file before the control goroutine consumed
// the result of the first one, so results arrive in file list order.
//
// Each run carries a session ID. Cancelling a run, or starting a new one
// while a digest is still being computed for an abandoned run, leaves that
// digest in flight; when it arrives its session ID no longer matches and
// it is dropped.
package dispatch

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"

	"github.com/jamesainslie/checksums/pkg/checksums/logging"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

var logger = logging.Get("dispatch")

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("dispatcher closed")

// State is the dispatcher's lifecycle state.
type State int32

const (
	// StateIdle means no run is active and no digest is in flight.
	StateIdle State = iota
	// StateRunning means a run is active.
	StateRunning
	// StateDraining means no run is active but a digest for an abandoned
	// run is still being computed.
	StateDraining
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Item is one file of a run.
type Item struct {
	// Path is the path as recorded in the manifest or walk result.
	Path string
	// Abs is the path opened on disk.
	Abs string
}

// Result is the outcome of one item.
type Result struct {
	Index int
	Item  Item
	// Missing is set when the file was absent or not a regular file.
	// Digest is empty in that case.
	Missing bool
	Digest  string
	Size    int64
}

// Handler consumes the results of one run. Its methods are called on the
// dispatcher's control goroutine and must not call back into the Dispatcher.
type Handler interface {
	// OnResult is called exactly once per item, in item order.
	// A non-nil error ends the run with that error.
	OnResult(res Result) error

	// OnComplete is called once when the run ends: with nil after the last
	// item, with types.ErrCancelled when the run was abandoned, or with the
	// error that stopped it.
	OnComplete(err error)
}

// Run is a session handed to the dispatcher.
type Run struct {
	ID      uuid.UUID
	Items   []Item
	Handler Handler
}

// Digester computes the digest of a file.
type Digester interface {
	DigestFile(path string) (string, error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStat replaces the existence check. It defaults to os.Stat.
func WithStat(stat func(string) (fs.FileInfo, error)) Option {
	return func(d *Dispatcher) {
		d.stat = stat
	}
}

type request struct {
	session uuid.UUID
	index   int
	item    Item
	size    int64
}

type response struct {
	request
	digest string
	err    error
}

type activeRun struct {
	Run
	cursor int
}

// Dispatcher runs one session at a time.
type Dispatcher struct {
	engine Digester
	stat   func(string) (fs.FileInfo, error)

	calls     chan func()
	requests  chan request
	responses chan response
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	state  atomic.Int32
	cursor atomic.Int64

	// Owned by the control goroutine.
	current  *activeRun
	inflight *request
}

// New creates a Dispatcher and starts its goroutines.
func New(engine Digester, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:    engine,
		stat:      os.Stat,
		calls:     make(chan func()),
		requests:  make(chan request, 1),
		responses: make(chan response),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	go d.loop()
	go d.work()
	return d
}

// Start begins run. It returns immediately; results reach run.Handler on
// the control goroutine. It fails with types.ErrSessionRunning while
// another run is active. Starting while draining is allowed: the new run's
// first digest waits for the abandoned one to finish.
func (d *Dispatcher) Start(run Run) error {
	var err error
	if !d.do(func() { err = d.start(run) }) {
		return ErrClosed
	}
	return err
}

// Cancel abandons the active run, if any. Its handler receives
// OnComplete(types.ErrCancelled). It reports whether a run was cancelled.
func (d *Dispatcher) Cancel() bool {
	var cancelled bool
	d.do(func() {
		if d.current != nil {
			d.finish(types.ErrCancelled)
			cancelled = true
		}
	})
	return cancelled
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Cursor returns the number of items of the active or last run that
// have been handed to its handler.
func (d *Dispatcher) Cursor() int {
	return int(d.cursor.Load())
}

// Close cancels the active run and stops the dispatcher. A digest still
// being computed is abandoned.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.Cancel()
		close(d.quit)
		<-d.stopped
	})
}

// do runs fn on the control goroutine and waits for it.
func (d *Dispatcher) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case d.calls <- func() { fn(); close(done) }:
	case <-d.quit:
		return false
	}
	<-done
	return true
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for {
		select {
		case fn := <-d.calls:
			fn()
		case resp := <-d.responses:
			d.receive(resp)
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) work() {
	for {
		select {
		case req := <-d.requests:
			digest, err := d.engine.DigestFile(req.item.Abs)
			select {
			case d.responses <- response{request: req, digest: digest, err: err}:
			case <-d.quit:
				return
			}
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) start(run Run) error {
	if d.current != nil {
		return types.ErrSessionRunning
	}

	d.current = &activeRun{Run: run}
	d.cursor.Store(0)
	d.state.Store(int32(StateRunning))
	logger.Debug("run started", "session", run.ID, "items", len(run.Items))

	d.advance()
	return nil
}

// advance processes items until one needs the worker or the run ends.
// Missing items are resolved inline. Nothing is dispatched while a digest
// is in flight, even one belonging to an abandoned run.
func (d *Dispatcher) advance() {
	for d.current != nil && d.inflight == nil {
		run := d.current
		if run.cursor >= len(run.Items) {
			d.finish(nil)
			return
		}

		item := run.Items[run.cursor]
		info, err := d.stat(item.Abs)
		switch {
		case err == nil && info.Mode().IsRegular():
			d.inflight = &request{session: run.ID, index: run.cursor, item: item, size: info.Size()}
			d.requests <- *d.inflight
			return
		case err == nil, isAbsent(err):
			d.deliver(Result{Index: run.cursor, Item: item, Missing: true})
		default:
			d.finish(&types.IOError{Path: item.Abs, Err: err})
			return
		}
	}
}

func (d *Dispatcher) receive(resp response) {
	d.inflight = nil

	if d.current == nil || d.current.ID != resp.session {
		logger.Debug("dropping stale result", "session", resp.session, "path", resp.item.Path)
		if d.current == nil {
			d.state.Store(int32(StateIdle))
		}
		d.advance()
		return
	}

	if resp.err != nil {
		d.finish(resp.err)
		return
	}
	d.deliver(Result{Index: resp.index, Item: resp.item, Digest: resp.digest, Size: resp.size})
	d.advance()
}

// deliver hands res to the handler and moves the cursor.
func (d *Dispatcher) deliver(res Result) {
	run := d.current
	run.cursor++
	d.cursor.Store(int64(run.cursor))

	if err := run.Handler.OnResult(res); err != nil {
		d.finish(err)
	}
}

// finish ends the active run.
func (d *Dispatcher) finish(err error) {
	run := d.current
	d.current = nil
	if d.inflight != nil {
		d.state.Store(int32(StateDraining))
	} else {
		d.state.Store(int32(StateIdle))
	}

	if err != nil {
		logger.Debug("run ended", "session", run.ID, "processed", run.cursor, "error", err)
	} else {
		logger.Debug("run complete", "session", run.ID, "processed", run.cursor)
	}
	run.Handler.OnComplete(err)
}

// isAbsent reports whether a stat error means the path does not exist.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
