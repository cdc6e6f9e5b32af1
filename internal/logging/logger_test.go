package logging_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/logging"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("narration fitted", logging.String(logging.FieldOutputID, "abcdefgh-1234"), logging.Int("attempts", 2))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "narration fitted") {
		t.Fatalf("missing message in %q", line)
	}
	if !strings.Contains(line, "[abcdefgh]") {
		t.Fatalf("expected shortened output subject prefix in %q", line)
	}
	if !strings.Contains(line, "attempts=2") {
		t.Fatalf("expected attrs in %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := logging.WithStage(logging.WithOutput(context.Background(), "out-1"), "images")
	logging.WithContext(ctx, logger).Info("scene generated")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{`"output_id":"out-1"`, `"stage":"images"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("missing %s in %q", want, string(data))
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled at all levels")
	}
}
