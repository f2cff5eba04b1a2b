// Package sklogimpl defines the interface for all sklog logging backends.
package sklogimpl

import (
	"os"
	"sync/atomic"
)

// Severity identifies the sort of log: info, warning etc.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
)

// Logger is the interface all logging backends must implement.
type Logger interface {
	// Log a message of the given severity. If format is the empty string
	// then the args are formatted as fmt.Sprint would, otherwise as
	// fmt.Sprintf would. The depth is the number of stack frames to skip
	// when reporting the file and line of the logging call site.
	Log(depth int, severity Severity, format string, args ...interface{})

	// Flush any buffered log lines.
	Flush()
}

var logger atomic.Value

// SetLogger changes the backend all sklog functions write to.
func SetLogger(l Logger) {
	logger.Store(l)
}

// Log writes a single log line to the current backend and exits the program
// if the severity is Fatal.
func Log(depth int, severity Severity, format string, args ...interface{}) {
	l := logger.Load().(Logger)
	l.Log(depth+1, severity, format, args...)
	if severity == Fatal {
		l.Flush()
		os.Exit(255)
	}
}

// Flush the current backend.
func Flush() {
	logger.Load().(Logger).Flush()
}
