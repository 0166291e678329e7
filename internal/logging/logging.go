// Package logging wires the runner's structured diagnostics, grounded on
// the teacher's logiface (github.com/joeycumines/logiface) generic logger
// facade backed by its izerolog adapter
// (github.com/joeycumines/izerolog) over github.com/rs/zerolog — used here
// as real upstream dependencies rather than copied, since they are
// already independently published, versioned modules.
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Event is an alias for the concrete event type the izerolog backend uses,
// so callers can write logging.Logger instead of threading the generic
// parameter through every signature.
type Event = izerolog.Event

// Logger is the structured logger every runner component (dispatcher,
// executor, unit, reporter) takes at construction time. None of them reach
// for a process-global logger; cmd/nextest-core constructs one Logger and
// passes it down.
type Logger = logiface.Logger[*Event]

// Level mirrors logiface's syslog-style level enum, re-exported so callers
// don't need a second import just to pick a verbosity.
type Level = logiface.Level

const (
	LevelError = logiface.LevelError
	LevelWarn  = logiface.LevelWarning
	LevelInfo  = logiface.LevelInformational
	LevelDebug = logiface.LevelDebug
)

// New builds a Logger writing newline-delimited JSON to w at the given
// level. A nil w defaults to os.Stderr, matching where the teacher's CLI
// tooling (e.g. _examples/Azure-ARO-HCP's logr-based setupLog) sends
// diagnostics by default.
func New(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	return logiface.New[*Event](
		izerolog.WithZerolog(zl),
		logiface.WithLevel[*Event](level),
	)
}

// Discard returns a Logger that drops everything; used by tests and by any
// unit/executor construction path that doesn't care about diagnostics.
func Discard() *Logger {
	return New(io.Discard, LevelError)
}
