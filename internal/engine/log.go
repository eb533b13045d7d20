package engine

import (
	"io"

	"github.com/fatih/color"
)

// Logger is the one seam the engine uses to report progress, skipped
// files, and errors. Where it writes (stderr, a rotating file under
// D/logs) is entirely a caller concern -- logging sinks are out of scope
// for the engine itself.
type Logger struct {
	info *color.Color
	warn *color.Color
	errs *color.Color
	out  io.Writer
}

// NewLogger wraps out with colored level prefixes that auto-disable when out
// is not a TTY, since fatih/color detects that itself.
func NewLogger(out io.Writer) *Logger {
	info := color.New(color.Reset)
	warn := color.New(color.FgYellow)
	errs := color.New(color.FgRed, color.Bold)

	return &Logger{info: info, warn: warn, errs: errs, out: out}
}

func (l *Logger) Infof(format string, args ...any) {
	l.info.Fprintf(l.out, format+"\n", args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.warn.Fprintf(l.out, "WARN: "+format+"\n", args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.errs.Fprintf(l.out, "ERROR: "+format+"\n", args...)
}

// discardLogger silently drops everything; used where a caller (e.g. a
// test) supplies no Logger.
type discardLogger struct{}

func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Errorf(string, ...any) {}

// LogSink is the interface the writer and query engine depend on, so
// tests can supply a no-op or recording implementation without pulling in
// fatih/color.
type LogSink interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

var _ LogSink = (*Logger)(nil)
var _ LogSink = discardLogger{}

func ensureLogger(l LogSink) LogSink {
	if l == nil {
		return discardLogger{}
	}
	return l
}
