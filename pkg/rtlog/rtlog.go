// Package rtlog is the event-logging backend named as a collaborator in
// spec.md §1 ("statistics and event-logging backends"). It wraps
// github.com/sirupsen/logrus (grounded on Talismancer-gvisor-ligolo's use
// of logrus for its own daemon event logging) so the rest of the runtime
// never branches on whether logging is enabled — when ENABLE_LOGGING is
// unset, a discard-all logger is installed instead.
package rtlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Event mirrors the original's log_event markers (mcsl_logging.hpp):
// enter_algo / exit_algo bracket a whole Launch run, and steal/sleep/wake are
// supplements this implementation adds to trace scheduler behavior.
type Event string

const (
	EventEnterAlgo Event = "enter_algo"
	EventExitAlgo  Event = "exit_algo"
	EventSteal     Event = "steal"
	EventSleep     Event = "sleep"
	EventWake      Event = "wake"
)

// Logger is the runtime's logging handle.
type Logger struct {
	l *logrus.Logger
}

// New creates an enabled logger writing structured fields to logrus's
// default text formatter.
func New() *Logger {
	l := logrus.New()
	return &Logger{l: l}
}

// Discard creates a logger that drops every event, used when
// ENABLE_LOGGING is not set.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return &Logger{l: l}
}

// Log records an event for the given worker.
func (lg *Logger) Log(workerID int, ev Event, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["worker"] = workerID
	lg.l.WithFields(fields).Info(string(ev))
}
