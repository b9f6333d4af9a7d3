package bus

import "log/slog"

// Logger is the logging surface the bus needs. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func defaultLogger() Logger {
	return slog.Default()
}
