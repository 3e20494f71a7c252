package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across idxtools.
// Use these constants instead of raw strings to ensure consistency.
const (
	FieldIndex     = "index"
	FieldDataset   = "dataset"
	FieldPath      = "path"
	FieldType      = "type"
	FieldQuery     = "query"
	FieldLine      = "line"
	FieldCount     = "count"
	FieldFormat    = "format"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldHolder    = "holder"
	FieldComponent = "component"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	ix, err := index.Open(path, f, index.WithLogger(logger.ComponentLogger("index")))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	dsLogger := logger.ChildLogger(baseLogger, logger.FieldDataset, ds.ID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
