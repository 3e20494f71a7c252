package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
const (
	VerbosityUser  = 0 // No flags: results, warnings and errors
	VerbosityInfo  = 1 // -v: + load/save progress
	VerbosityDebug = 2 // -vv: + per-record decisions, lookups
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
// Mapping:
//
//	0 (none)  -> WarnLevel
//	1 (-v)    -> InfoLevel
//	2+ (-vv)  -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ResolveLevel picks the more verbose of a configured level name and the
// -v count, so either source can raise verbosity.
func ResolveLevel(configured string, verbosity int) zapcore.Level {
	fromFlags := VerbosityToLevel(verbosity)
	if configured == "" {
		return fromFlags
	}
	fromConfig := ParseLevel(configured)
	if fromConfig < fromFlags {
		return fromConfig
	}
	return fromFlags
}
