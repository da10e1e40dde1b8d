// Package logging provides component loggers backed by charmbracelet/log.
//
// Packages hold a logger for their component and log through it at any
// time; output is discarded until Init configures a destination:
//
//	var logger = logging.Get("dispatch")
//
//	func main() {
//	    if err := logging.Init(logging.DefaultConfig()); err != nil { ... }
//	    defer logging.Close()
//	    logger.Info("session started", "files", 12)
//	}
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when a level string is not recognized.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the file log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// ConsoleLevel enables stderr output at the given level.
	// Empty disables console output.
	ConsoleLevel string

	// TUIMode disables console output and keeps recent entries in a
	// LogBuffer for the log pane.
	TUIMode bool
}

// LogEntry is a single log line delivered to subscribers.
type LogEntry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
}

// Logger logs for one component. It is cheap to copy and safe to hold in a
// package variable: it resolves its destination on every call.
type Logger struct {
	component string
	fields    []interface{}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) { l.log(LevelInfo, msg, args) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) { l.log(LevelWarn, msg, args) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }

// With returns a logger that adds the given key/value pairs to every entry.
func (l *Logger) With(args ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(args))
	fields = append(fields, l.fields...)
	fields = append(fields, args...)
	return &Logger{component: l.component, fields: fields}
}

func (l *Logger) log(level Level, msg string, args []interface{}) {
	if len(l.fields) > 0 {
		args = append(append([]interface{}{}, l.fields...), args...)
	}

	b := globalState.backend(l.component)
	emit(b.file, level, msg, args)
	if b.console != nil {
		emit(b.console, level, msg, args)
	}

	globalState.broadcast(LogEntry{
		Time:      time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
	})
}

func emit(logger *log.Logger, level Level, msg string, args []interface{}) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}

// backend is the pair of charm loggers a component writes to.
type backend struct {
	file    *log.Logger
	console *log.Logger
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	console     bool
	consoleLvl  Level
	backends    map[string]*backend
	loggers     map[string]*Logger
	subscribers map[chan LogEntry]struct{}
	buffer      *LogBuffer
}

var globalState = &state{
	backends:    make(map[string]*backend),
	loggers:     make(map[string]*Logger),
	subscribers: make(map[chan LogEntry]struct{}),
}

// Init configures where loggers write. Calling it again replaces the
// previous configuration.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	consoleLvl := LevelInfo
	console := cfg.ConsoleLevel != "" && !cfg.TUIMode
	if console {
		if consoleLvl, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if globalState.writer != nil {
		_ = globalState.writer.Close()
	}
	globalState.writer = writer
	globalState.level = level
	globalState.console = console
	globalState.consoleLvl = consoleLvl
	globalState.backends = make(map[string]*backend)
	globalState.buffer = nil
	if cfg.TUIMode {
		globalState.buffer = NewLogBuffer(DefaultBufferSize)
	}
	globalState.initialized = true

	return nil
}

// Get returns the logger for component.
func Get(component string) *Logger {
	globalState.mu.RLock()
	l, ok := globalState.loggers[component]
	globalState.mu.RUnlock()
	if ok {
		return l
	}

	globalState.mu.Lock()
	defer globalState.mu.Unlock()
	if l, ok := globalState.loggers[component]; ok {
		return l
	}
	l = &Logger{component: component}
	globalState.loggers[component] = l
	return l
}

func (s *state) backend(component string) *backend {
	s.mu.RLock()
	b, ok := s.backends[component]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.backends[component]; ok {
		return b
	}

	b = &backend{}
	if !s.initialized {
		b.file = log.NewWithOptions(io.Discard, log.Options{Prefix: component})
	} else {
		b.file = log.NewWithOptions(s.writer, log.Options{
			Level:           s.level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		})
		if s.console {
			b.console = log.NewWithOptions(os.Stderr, log.Options{
				Level:           s.consoleLvl.charm(),
				ReportTimestamp: true,
				TimeFormat:      time.Kitchen,
				Prefix:          component,
			})
		}
	}
	s.backends[component] = b
	return b
}

// Close flushes and closes the log file and all subscriber channels.
// Loggers keep working afterwards and discard their output.
func Close() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if !globalState.initialized {
		return nil
	}

	for ch := range globalState.subscribers {
		close(ch)
		delete(globalState.subscribers, ch)
	}

	var err error
	if globalState.writer != nil {
		err = globalState.writer.Close()
		globalState.writer = nil
	}
	globalState.initialized = false
	globalState.backends = make(map[string]*backend)
	globalState.buffer = nil

	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// Subscribe returns a buffered channel receiving every log entry.
// Entries are dropped when the channel is full.
func Subscribe() <-chan LogEntry {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	ch := make(chan LogEntry, 100)
	globalState.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch. The channel is left open.
func Unsubscribe(ch <-chan LogEntry) {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	for sub := range globalState.subscribers {
		if sub == ch {
			delete(globalState.subscribers, sub)
			return
		}
	}
}

func (s *state) broadcast(entry LogEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.buffer != nil {
		s.buffer.Add(entry)
	}
	for ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

// Buffer returns the TUI log buffer, or nil outside TUI mode.
func Buffer() *LogBuffer {
	globalState.mu.RLock()
	defer globalState.mu.RUnlock()
	return globalState.buffer
}

// DefaultLogPath returns $XDG_STATE_HOME/checksums/checksums.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "checksums", "checksums.log")
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
