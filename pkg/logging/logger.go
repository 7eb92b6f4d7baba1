package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Category represents the subsystem generating the log
type Category string

const (
	CategoryStorage  Category = "storage"
	CategoryStream   Category = "stream"
	CategoryRewrite  Category = "rewrite"
	CategoryAutosave Category = "autosave"
	CategorySession  Category = "session"
	CategoryNetwork  Category = "network"
	CategoryConfig   Category = "config"
)

// Event represents a structured log event
type Event struct {
	Timestamp time.Time
	Level     Level
	Category  Category
	EventType string
	DocID     string
	Details   map[string]any
	Message   string
}

// Config controls where and how much the logger writes.
type Config struct {
	Level     Level
	Pretty    bool      // console output through zerolog.ConsoleWriter
	Output    io.Writer // console sink; nil disables console output
	Dir       string    // when set, events are also appended to Dir/sessions/<SessionID>.jsonl
	SessionID string
}

// Logger writes structured events through zerolog.
type Logger struct {
	zlog        zerolog.Logger
	sessionID   string
	sessionFile *os.File
	mu          sync.Mutex
}

// ParseLevel converts a config string into a Level, defaulting to info.
func ParseLevel(raw string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "warning":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// New creates a new structured logger
func New(cfg Config) (*Logger, error) {
	var writers []io.Writer

	var sessionFile *os.File
	if cfg.Dir != "" {
		sessionsDir := filepath.Join(cfg.Dir, "sessions")
		if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sessions directory: %w", err)
		}
		name := cfg.SessionID
		if name == "" {
			name = "default"
		}
		f, err := os.OpenFile(
			filepath.Join(sessionsDir, name+".jsonl"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open session log: %w", err)
		}
		sessionFile = f
		writers = append(writers, f)
	}

	if cfg.Output != nil {
		out := cfg.Output
		if cfg.Pretty {
			out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
		}
		writers = append(writers, out)
	}

	var sink io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		sink = writers[0]
	default:
		sink = zerolog.MultiLevelWriter(writers...)
	}

	ctx := zerolog.New(sink).Level(toZerolog(cfg.Level)).With().Timestamp()
	if cfg.SessionID != "" {
		ctx = ctx.Str("session_id", cfg.SessionID)
	}

	return &Logger{
		zlog:        ctx.Logger(),
		sessionID:   cfg.SessionID,
		sessionFile: sessionFile,
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog exposes the underlying logger for packages that log directly.
func (l *Logger) Zerolog() *zerolog.Logger {
	if l == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return &l.zlog
}

// SessionID returns the session the logger was opened for.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Log writes an event.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	var ev *zerolog.Event
	switch event.Level {
	case LevelDebug:
		ev = l.zlog.Debug()
	case LevelWarn:
		ev = l.zlog.Warn()
	case LevelError:
		ev = l.zlog.Error()
	default:
		ev = l.zlog.Info()
	}
	if ev == nil {
		return
	}
	if !event.Timestamp.IsZero() {
		ev = ev.Time("event_time", event.Timestamp)
	}
	ev = ev.Str("category", string(event.Category)).Str("type", event.EventType)
	if event.DocID != "" {
		ev = ev.Str("doc_id", event.DocID)
	}
	if len(event.Details) > 0 {
		ev = ev.Fields(event.Details)
	}
	ev.Msg(event.Message)
}

// Debug logs a debug event
func (l *Logger) Debug(category Category, eventType string, message string, details map[string]any) {
	l.Log(Event{Level: LevelDebug, Category: category, EventType: eventType, Message: message, Details: details})
}

// Info logs an info event
func (l *Logger) Info(category Category, eventType string, message string, details map[string]any) {
	l.Log(Event{Level: LevelInfo, Category: category, EventType: eventType, Message: message, Details: details})
}

// Warn logs a warning event
func (l *Logger) Warn(category Category, eventType string, message string, details map[string]any) {
	l.Log(Event{Level: LevelWarn, Category: category, EventType: eventType, Message: message, Details: details})
}

// Error logs an error event
func (l *Logger) Error(category Category, eventType string, message string, details map[string]any) {
	l.Log(Event{Level: LevelError, Category: category, EventType: eventType, Message: message, Details: details})
}

// Close closes the session log file
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sessionFile == nil {
		return nil
	}
	err := l.sessionFile.Close()
	l.sessionFile = nil
	return err
}

func toZerolog(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
