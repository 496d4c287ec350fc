package types

// Logger is the structured logger used throughout credshare.
//
// Arguments after msg are alternating keys and values, the convention of
// log/slog and zap.SugaredLogger. Coordinators attach "peer_id" to every
// record they emit.
type Logger interface {
	// Debug logs protocol detail: bus traffic, timers, discarded results.
	Debug(msg string, keysAndValues ...any)

	// Info logs role changes, logout and lifecycle events.
	Info(msg string, keysAndValues ...any)

	// Warn logs recoverable trouble such as an unreachable claim store.
	Warn(msg string, keysAndValues ...any)

	// Error logs failures that reach the OnError hook.
	Error(msg string, keysAndValues ...any)

	// Fatal logs msg and terminates the process. The library itself never calls it.
	Fatal(msg string, keysAndValues ...any)
}
