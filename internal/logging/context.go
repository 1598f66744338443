package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for ingestion run identifiers.
	FieldRunID = "run_id"
	// FieldObjectKey is the standardized structured logging key for catalog object keys.
	FieldObjectKey = "object_key"
	// FieldTask is the standardized structured logging key for work-queue task names.
	FieldTask = "task"
	// FieldHandle is the standardized structured logging key for work-item handles.
	FieldHandle = "handle"
)

type contextKey int

const (
	runIDKey contextKey = iota
	objectKeyKey
)

// WithRunID stores the run identifier on the context for log enrichment.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithObjectKey stores the object key on the context for log enrichment.
func WithObjectKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, objectKeyKey, key)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if key, ok := ctx.Value(objectKeyKey).(string); ok && key != "" {
		fields = append(fields, slog.String(FieldObjectKey, key))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
