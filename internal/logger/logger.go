package logger

// Logger is the narrow logging surface used across the engine. Engine code
// never depends on a concrete logging backend, only on this interface.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Nop returns a logger that discards everything; used in tests.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (n nopLogger) WithField(string, any) Logger      { return n }
func (n nopLogger) WithFields(map[string]any) Logger  { return n }
func (n nopLogger) WithError(error) Logger            { return n }
func (nopLogger) Debug(...any)                        {}
func (nopLogger) Info(...any)                         {}
func (nopLogger) Warn(...any)                         {}
func (nopLogger) Error(...any)                        {}
func (nopLogger) Fatal(...any)                        {}
func (nopLogger) Debugf(string, ...any)               {}
func (nopLogger) Infof(string, ...any)                {}
func (nopLogger) Warnf(string, ...any)                {}
func (nopLogger) Errorf(string, ...any)               {}
func (nopLogger) Fatalf(string, ...any)               {}
