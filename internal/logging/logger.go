package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger provides console logging with redaction support and an optional
// plain-text file sink.
type Logger struct {
	debug   bool
	noColor bool

	mu   sync.Mutex
	out  io.Writer
	file io.WriteCloser
	now  func() time.Time
}

// New creates a new logger instance writing to stderr
func New(debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     os.Stderr,
		now:     time.Now,
	}
}

// NewWithWriter creates a logger writing to w instead of stderr.
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	l := New(debug, noColor)
	l.out = w
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, false, true)
}

// AttachFile mirrors every message into w using the
// "[level] 2006-01-02 15:04:05: message" line format.
// A previously attached sink is closed.
func (l *Logger) AttachFile(w io.WriteCloser) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil && l.file != w {
		_ = l.file.Close()
	}
	l.file = w
}

// OpenFile creates path (and its directory) and attaches it as the file sink.
func (l *Logger) OpenFile(path string) error {
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.AttachFile(f)
	return nil
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("info", "\033[32m✓\033[0m ", "✓ ", format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("warning", "\033[33m⚠\033[0m ", "⚠ ", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("error", "\033[31m✗\033[0m ", "✗ ", format, args...)
}

// Debug logs a debug message if debug mode is enabled.
// The file sink always receives debug lines.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		l.toFile("debug", fmt.Sprintf(format, args...))
		return
	}
	l.emit("debug", "\033[36m[DEBUG]\033[0m ", "[DEBUG] ", format, args...)
}

// IsDebug reports whether debug output is enabled.
func (l *Logger) IsDebug() bool {
	return l.debug
}

func (l *Logger) emit(level, colored, plain, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	prefix := colored
	if l.noColor {
		prefix = plain
	}

	l.mu.Lock()
	fmt.Fprintf(l.out, "%s%s\n", prefix, msg)
	l.mu.Unlock()

	l.toFile(level, msg)
}

func (l *Logger) toFile(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	line := strings.ReplaceAll(msg, "\n", "")
	fmt.Fprintf(l.file, "[%s] %s: %s\n", level, l.now().Format("2006-01-02 15:04:05"), line)
}

func dirOf(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	if i <= 0 {
		return ""
	}
	return path[:i]
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
