package logging

import (
	"context"
	"log/slog"

	"reelsmith/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldOutputID is the standardized structured logging key for output identifiers.
	FieldOutputID = "output_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldScene is the standardized structured logging key for zero-based scene order.
	FieldScene = "scene"
	// FieldEventType tags log records with a machine-readable event name.
	FieldEventType = "event_type"
	// FieldProvider is the standardized structured logging key for generative provider names.
	FieldProvider = "provider"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.OutputIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOutputID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if scene, ok := services.SceneFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldScene, scene))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

// WithOutput annotates context with the output identifier.
func WithOutput(ctx context.Context, id string) context.Context {
	return services.WithOutputID(ctx, id)
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}

// WithScene annotates context with the zero-based scene order.
func WithScene(ctx context.Context, order int) context.Context {
	return services.WithScene(ctx, order)
}
