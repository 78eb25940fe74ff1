package core

import "log"

// Logger is any leveled logging service.
// Implementations may inspect args for known types (eg. a logged-in user)
// and attach them as metadata.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type consoleLogger struct {
	std *log.Logger
}

var _ Logger = (*consoleLogger)(nil)

// NewConsoleLogger returns a Logger writing to the given standard logger.
// It is the DEV/TEST logging service; production uses the rollbar service.
func NewConsoleLogger(std *log.Logger) Logger {
	return &consoleLogger{std: std}
}

func (l consoleLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v", arg)
	}
}

func (l consoleLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l consoleLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l consoleLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l consoleLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l consoleLogger) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}
