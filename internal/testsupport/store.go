package testsupport

import (
	"context"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewOutput creates a minimal output for tests using the provided store.
func NewOutput(t testing.TB, st *store.Store, title string) *store.Output {
	t.Helper()

	output := &store.Output{
		Title:          title,
		Brief:          "a short test production about " + title,
		AspectRatio:    "9:16",
		TargetSeconds:  30,
		Voice:          "test-voice",
		WordsPerMinute: 150,
	}
	if err := st.CreateOutput(context.Background(), output); err != nil {
		t.Fatalf("store.CreateOutput: %v", err)
	}
	return output
}

// SeedScenes replaces the output's scenes with n simple numbered scenes.
func SeedScenes(t testing.TB, st *store.Store, outputID string, n int) []*store.Scene {
	t.Helper()

	scenes := make([]*store.Scene, n)
	for i := range scenes {
		scenes[i] = &store.Scene{
			Narration:  "narration for scene",
			VisualDesc: "visual for scene",
			AudioDesc:  "ambient room tone",
		}
	}
	if err := st.ReplaceScenes(context.Background(), outputID, scenes); err != nil {
		t.Fatalf("store.ReplaceScenes: %v", err)
	}
	return scenes
}
