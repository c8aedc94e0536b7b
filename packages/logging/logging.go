package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// Setup configures the default logger. quiet wins over verbose.
func Setup(verbose, quiet, jsonFormat bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	if quiet {
		level = log.ErrorLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)

	if jsonFormat {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
}

// New returns a logger prefixed with the component name.
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// Discard returns a logger that drops everything. Used as the zero value for
// optional logger fields.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// SetOutput overrides the default logger's writer, mostly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
