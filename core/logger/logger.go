// Package logger defines the logging contract shared by the sweep, the model
// and the adapters. Implementations live in infra/logger.
package logger

// Fields carries structured key/value pairs for Debugw.
type Fields = map[string]any

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields such as run ids and
	// solver status.
	Debugw(msg string, fields Fields)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
