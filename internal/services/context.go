package services

import "context"

type contextKey string

const (
	outputIDKey contextKey = "output_id"
	stageKey    contextKey = "stage"
	sceneKey    contextKey = "scene"
)

// WithOutputID annotates context with the output identifier.
func WithOutputID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, outputIDKey, id)
}

// OutputIDFromContext extracts the output identifier if present.
func OutputIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(outputIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithScene annotates context with the zero-based scene order.
func WithScene(ctx context.Context, order int) context.Context {
	return context.WithValue(ctx, sceneKey, order)
}

// SceneFromContext returns the scene order if present.
func SceneFromContext(ctx context.Context) (int, bool) {
	if val, ok := ctx.Value(sceneKey).(int); ok {
		return val, true
	}
	return 0, false
}
