package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across lore.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldUniqueKey   = "unique_key"
	FieldIngestionID = "ingestion_id"
	FieldCounter     = "ingestion_counter"
	FieldRemoteURL   = "remote_url"
	FieldBranch      = "branch"
	FieldCommitSHA   = "commit_sha"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldQuery     = "query"
	FieldSource    = "source"
	FieldPath      = "path"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldAttempt    = "attempt"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount      = "count"
	FieldBatchSize  = "batch_size"
	FieldTotalCount = "total_count"

	// Status
	FieldStatus = "status"
	FieldState  = "state"

	// Network
	FieldAddress = "address"
	FieldURI     = "uri"
)

// Context keys for propagating logging context
type contextKey string

const (
	ingestionIDKey contextKey = "logger_ingestion_id"
	uniqueKeyKey   contextKey = "logger_unique_key"
	componentKey   contextKey = "logger_component"
)

// WithIngestionID adds an ingestion ID to the context for logging
func WithIngestionID(ctx context.Context, ingestionID string) context.Context {
	return context.WithValue(ctx, ingestionIDKey, ingestionID)
}

// WithUniqueKey adds a codebase unique key to the context for logging
func WithUniqueKey(ctx context.Context, uniqueKey string) context.Context {
	return context.WithValue(ctx, uniqueKeyKey, uniqueKey)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if ingestionID, ok := ctx.Value(ingestionIDKey).(string); ok && ingestionID != "" {
		fields = append(fields, FieldIngestionID, ingestionID)
	}
	if uniqueKey, ok := ctx.Value(uniqueKeyKey).(string); ok && uniqueKey != "" {
		fields = append(fields, FieldUniqueKey, uniqueKey)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
// Use this to get a logger that automatically includes ingestion_id, unique_key, etc.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Tracker struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewTracker() *Tracker {
//	    return &Tracker{
//	        logger: logger.ComponentLogger("tracker"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
// Use for sub-operations that need extra context fields.
//
// Example:
//
//	runLogger := logger.ChildLogger(baseLogger, "ingestion_id", md.IngestionID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
