package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/checksums/pkg/checksums/logging"
	"github.com/jamesainslie/checksums/pkg/checksums/progress"
	"github.com/jamesainslie/checksums/pkg/checksums/report"
	"github.com/jamesainslie/checksums/pkg/checksums/session"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

var logger = logging.Get("tui")

// AppState represents the current state of the application.
type AppState int

const (
	// StateStarting waits for the manifest parse or directory walk.
	StateStarting AppState = iota
	// StateRunning shows a session in progress.
	StateRunning
	// StateFinished shows the final counters of a session.
	StateFinished
	// StateFailed shows why the session could not start.
	StateFailed
)

// BeginFunc starts the session the TUI displays.
type BeginFunc func(context.Context) (*session.Session, error)

// Options configures the TUI application.
type Options struct {
	Controller *session.Controller
	Mode       types.Mode
	Target     string
	Begin      BeginFunc
	// Filter selects the record kinds shown initially.
	Filter types.KindSet
}

// Model is the main Bubble Tea model for the checksums TUI.
type Model struct {
	state   AppState
	options Options

	ctx    context.Context
	cancel context.CancelFunc
	sub    *progress.Subscriber

	session   *session.Session
	err       error
	processed int
	total     int
	counters  types.Counters
	current   string

	records recordList
	logs    *logPane
	spinner spinner.Model
	bar     bar.Model

	// Window dimensions
	width  int
	height int
}

// beganMsg carries the result of Options.Begin.
type beganMsg struct {
	session *session.Session
	err     error
}

// eventMsg carries one progress event.
type eventMsg progress.Event

// replayMsg carries records re-read from the log.
type replayMsg struct {
	records []report.Record
	err     error
}

// tickUIMsg triggers a UI refresh.
type tickUIMsg struct{}

// NewModel creates a new TUI model with the given options. It subscribes to
// progress before the session starts so no event is missed.
func NewModel(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	if opts.Filter == 0 {
		opts.Filter = types.AllKinds
	}

	return Model{
		state:   StateStarting,
		options: opts,
		ctx:     ctx,
		cancel:  cancel,
		sub:     opts.Controller.Subscribe(),
		records: newRecordList(opts.Filter),
		logs:    newLogPane(bufferSource),
		spinner: s,
		bar:     bar.New(bar.WithGradient(string(primaryColor), string(successColor)), bar.WithoutPercentage()),
		width:   80,
		height:  24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.begin(),
		m.tickUI(),
	)
}

// begin runs Options.Begin off the UI goroutine.
func (m Model) begin() tea.Cmd {
	ctx, begin := m.ctx, m.options.Begin
	return func() tea.Msg {
		s, err := begin(ctx)
		return beganMsg{session: s, err: err}
	}
}

// listenForProgress returns a command that waits for the next event.
func (m Model) listenForProgress() tea.Cmd {
	if m.sub == nil {
		return nil
	}
	events := m.sub.Events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// replay re-reads the log for the record list.
func (m Model) replay() tea.Cmd {
	if m.options.Mode != types.ModeVerify {
		return nil
	}
	ctrl := m.options.Controller
	return func() tea.Msg {
		records, err := ctrl.Replay(types.AllKinds)
		return replayMsg{records: records, err: err}
	}
}

// tickUI returns a command that periodically triggers UI updates.
func (m Model) tickUI() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return tickUIMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width - 16
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case beganMsg:
		if msg.err != nil {
			m.state = StateFailed
			m.err = msg.err
			logger.Error("session did not start", "target", m.options.Target, "error", msg.err)
			return m, nil
		}
		m.state = StateRunning
		m.session = msg.session
		m.total = len(msg.session.Files)
		return m, m.listenForProgress()

	case eventMsg:
		m.applyEvent(progress.Event(msg))
		if m.state == StateFinished {
			return m, m.replay()
		}
		return m, m.listenForProgress()

	case replayMsg:
		if msg.err != nil {
			logger.Warn("failed to replay log", "error", msg.err)
			return m, nil
		}
		m.records.replace(msg.records)
		return m, nil

	case tickUIMsg:
		wasRunning := m.state == StateRunning
		m.poll()
		switch {
		case m.state == StateRunning || m.state == StateStarting:
			return m, m.tickUI()
		case wasRunning:
			return m, m.replay()
		}
		return m, nil

	case spinner.TickMsg:
		if m.state != StateRunning && m.state != StateStarting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// applyEvent folds one event of the displayed session into the model.
func (m *Model) applyEvent(ev progress.Event) {
	if m.session == nil || ev.Session != m.session.ID {
		return
	}
	m.processed, m.total, m.counters = ev.Processed, ev.Total, ev.Counters

	if ev.Done {
		m.finish(ev.Err)
		return
	}

	m.current = ev.Path
	// Rows already replayed from the log are not added twice.
	if ev.Processed <= len(m.records.all) {
		return
	}
	ln := line{kind: ev.Kind, path: ev.Path}
	if m.options.Mode == types.ModeGenerate && ev.Kind == types.KindPass {
		ln.digest = ev.Digest
	}
	m.records.add(ln)
}

// poll refreshes counters from the session when events were dropped.
func (m *Model) poll() {
	if m.session == nil || m.state != StateRunning {
		return
	}
	processed, total := m.session.Progress()
	if processed > m.processed {
		m.processed, m.total = processed, total
		m.counters = m.session.Counters()
	}
	if m.session.Finished() {
		m.finish(m.session.Err())
	}
}

func (m *Model) finish(err error) {
	if m.state == StateFinished {
		return
	}
	m.state = StateFinished
	m.err = err
	m.current = ""
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c", "q", "esc":
		return m.quit()
	case "l":
		m.logs.toggle()
		return m, nil
	}

	if m.logs.open {
		m.logs.handleKey(key, m.logRows()-2)
		return m, nil
	}

	switch key {
	case "1", "2", "3":
		if m.options.Mode != types.ModeVerify || m.session == nil {
			return m, nil
		}
		m.records.toggle(types.Kind(key[0] - '1'))
		return m, m.replay()
	case "up", "k":
		m.records.scrollUp(1)
	case "down", "j":
		m.records.scrollDown(1, m.listRows())
	case "pgup":
		m.records.scrollUp(m.listRows())
	case "pgdown":
		m.records.scrollDown(m.listRows(), m.listRows())
	case "enter":
		if m.state == StateFinished || m.state == StateFailed {
			return m.quit()
		}
	}
	return m, nil
}

// quit cancels a running session and exits.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.state == StateRunning {
		m.options.Controller.Cancel()
		m.poll()
	}
	m.cancel()
	if m.sub != nil {
		m.options.Controller.Unsubscribe(m.sub.ID)
		m.sub = nil
	}
	return m, tea.Quit
}

// Session returns the displayed session, nil before it started.
func (m Model) Session() *session.Session {
	return m.session
}

// Err returns why the session failed to start or ended early.
func (m Model) Err() error {
	return m.err
}

// State returns the current application state.
func (m Model) State() AppState {
	return m.state
}

// chrome is the number of lines taken by everything but the list pane.
const chrome = 16

func (m Model) listRows() int {
	rows := m.height - chrome
	if m.logs.open {
		rows -= m.logRows()
	}
	if rows < 3 {
		rows = 3
	}
	return rows
}

func (m Model) logRows() int {
	rows := (m.height - chrome) / 2
	if rows < 4 {
		rows = 4
	}
	return rows
}

// View renders the current state.
func (m Model) View() string {
	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(renderAppHeader(m.options.Mode, m.options.Target, m.hint(), contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus(contentWidth))
	b.WriteString("\n\n")
	b.WriteString("  " + m.bar.ViewAs(fraction(m.processed, m.total)))
	b.WriteString(fmt.Sprintf(" %3.0f%%", fraction(m.processed, m.total)*100))
	b.WriteString("\n\n")

	var elapsed time.Duration
	var hashed int64
	if m.session != nil {
		elapsed = m.session.Elapsed()
		hashed = m.session.Bytes()
	}
	b.WriteString(renderStats(m.options.Mode, m.processed, m.total, m.counters, hashed, elapsed, contentWidth))
	b.WriteString("\n")

	if m.options.Mode == types.ModeVerify {
		b.WriteString(renderFilterBar(m.records.filter, m.counters))
		b.WriteString("\n")
	}
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderRecords(&m.records, contentWidth, m.listRows()))

	if m.logs.open {
		b.WriteString(m.logs.view(contentWidth, m.logRows()))
	}

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) hint() string {
	switch m.state {
	case StateFinished, StateFailed:
		return "[Enter/q] exit  [l] logs"
	default:
		return "[q] stop  [l] logs"
	}
}

// renderStatus renders the line under the header.
func (m Model) renderStatus(width int) string {
	switch m.state {
	case StateStarting:
		verb := "Reading manifest"
		if m.options.Mode == types.ModeGenerate {
			verb = "Listing files"
		}
		return fmt.Sprintf("  %s %s...", m.spinner.View(), verb)

	case StateRunning:
		return fmt.Sprintf("  %s Hashing: %s", m.spinner.View(), truncatePath(m.current, width-16))

	case StateFailed:
		return errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err))

	default:
		switch {
		case errors.Is(m.err, types.ErrCancelled):
			return warningTextStyle.Render("  Cancelled")
		case m.err != nil:
			return errorTextStyle.Render(fmt.Sprintf("  Failed: %v", m.err))
		case m.options.Mode == types.ModeGenerate:
			return successTextStyle.Render("  Done! File saved to " + m.session.OutputPath())
		case m.counters.Clean():
			return successTextStyle.Render("  All files passed")
		default:
			return warningTextStyle.Render(fmt.Sprintf("  %d missing, %d bad", m.counters.Missing, m.counters.Bad))
		}
	}
}

// Run starts the TUI and returns the session it displayed, nil when the
// session never started.
func Run(opts Options) (*session.Session, error) {
	model := NewModel(opts)

	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	m, ok := final.(Model)
	if !ok {
		return nil, nil
	}
	if m.state == StateFailed {
		return nil, m.err
	}
	return m.session, nil
}
