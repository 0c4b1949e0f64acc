// Package logger provides process-wide logging for Minutes.
// Messages go through a shared logrus logger; when verbose mode is enabled
// via the --verbose flag, debug messages describing the transcription and
// retrieval pipelines are printed as well.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.RWMutex
	verbose bool
	base    = newLogger(os.Stderr)
)

// Fields is an alias for structured log fields.
type Fields = logrus.Fields

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		PadLevelText:  true,
	})
	return l
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}

// SetFormat selects "json" or "text" output.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		PadLevelText:  true,
	})
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(logrus.DebugLevel, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	logf(logrus.DebugLevel, "=== %s ===", name)
}

// Info prints an informational message.
func Info(format string, args ...any) {
	logf(logrus.InfoLevel, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(logrus.WarnLevel, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(logrus.ErrorLevel, format, args...)
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields Fields) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithFields(fields)
}

func logf(level logrus.Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !base.IsLevelEnabled(level) {
		return
	}
	base.Log(level, fmt.Sprintf(format, args...))
}
