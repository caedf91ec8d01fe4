package core

// LogActor identifies the caller a log entry relates to; logging backends may
// attach it to their error reports.
type LogActor struct {
	ID    string
	Email string
}

// Logger is any service that can log messages with optional contextual args
// (errors, maps, a LogActor...).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
