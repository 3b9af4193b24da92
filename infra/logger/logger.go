// Package logger provides the zerolog implementation of the core Logger and
// a no-op logger for tests.
package logger

import corelogger "github.com/kilianp07/gridsweep/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)            {}
func (NopLogger) Debugw(string, corelogger.Fields) {}
func (NopLogger) Infof(string, ...any)             {}
func (NopLogger) Warnf(string, ...any)             {}
func (NopLogger) Errorf(string, ...any)            {}

// New returns a Logger tagged with component, as JSON on stderr or as
// console output when APP_ENV=dev.
func New(component string) Logger {
	return NewZerologLogger(component)
}
