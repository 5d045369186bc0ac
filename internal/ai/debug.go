package ai

import "sync/atomic"

// debugEnabled gates per-tick slog.Debug calls, which are too hot to
// leave unconditional at scale.
var debugEnabled atomic.Bool

// EnableDebugLogging toggles verbose AI logging. Called once at startup
// based on the configured log level.
func EnableDebugLogging(enabled bool) {
	debugEnabled.Store(enabled)
}

// IsDebugEnabled reports whether verbose AI logging is on.
func IsDebugEnabled() bool {
	return debugEnabled.Load()
}
