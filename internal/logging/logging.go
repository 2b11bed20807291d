// Package logging configures the structured logger used for diagnostics.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Logger is the logger type passed between packages.
type Logger = *logrus.Logger

// Fields represents structured logging fields.
type Fields = logrus.Fields

// Entry is a logger with fields attached.
type Entry = logrus.Entry

// Level represents a log level.
type Level = logrus.Level

// Log levels
const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

// EnvLogLevel names the environment variable that sets the default level.
const EnvLogLevel = "LOG_LEVEL"

// NewLogger creates a logger writing to stderr. Terminals get the text
// formatter, everything else JSON. The level comes from LOG_LEVEL.
func NewLogger() *logrus.Logger {
	return New(os.Stderr, os.Getenv(EnvLogLevel))
}

// New creates a logger writing to w at the named level.
func New(w io.Writer, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetLevel(ParseLevel(level))
	return logger
}

// ParseLevel maps a level name to a logrus level, defaulting to warn so
// normal CLI output stays quiet.
func ParseLevel(level string) Level {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return WarnLevel
	}
	return parsed
}

// Discard returns a logger that drops everything. Useful in tests and for
// callers that pass no logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}
