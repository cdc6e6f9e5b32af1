package ffprobe

import "testing"

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1080, Height: 1920},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "4.275",
		},
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("expected 1 audio stream, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 4.275 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.DurationMS() != 4275 {
		t.Fatalf("unexpected duration ms: %d", result.DurationMS())
	}
	width, height := result.Dimensions()
	if width != 1080 || height != 1920 {
		t.Fatalf("unexpected dimensions: %dx%d", width, height)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
		},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	width, height := result.Dimensions()
	if width != 0 || height != 0 {
		t.Fatalf("expected zero dimensions, got %dx%d", width, height)
	}
}
