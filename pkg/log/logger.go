// Package log provides a logger interface for logger libraries so the rest
// of the module does not depend on any of them directly, with slog and
// logrus adapters underneath.
package log

// Logger serves as an adapter interface for logger libraries so callers
// never depend on a concrete logging library directly.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
