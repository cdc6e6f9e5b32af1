package stage_test

import (
	"testing"

	"reelsmith/internal/stage"
)

func TestSequenceOrder(t *testing.T) {
	seq := stage.Sequence()
	if len(seq) != 11 {
		t.Fatalf("expected 11 stages, got %d", len(seq))
	}
	if seq[0] != stage.Outline || seq[len(seq)-1] != stage.Render {
		t.Fatalf("unexpected sequence bounds: %v", seq)
	}
	if stage.Index(stage.Images) >= stage.Index(stage.NarrationAudio) {
		t.Fatal("images must precede narration_audio")
	}
}

func TestBeforeAfter(t *testing.T) {
	before := stage.Before(stage.Script)
	if len(before) != 2 || before[0] != stage.Outline || before[1] != stage.Writer {
		t.Fatalf("unexpected Before(script): %v", before)
	}
	after := stage.After(stage.Motion)
	if len(after) != 1 || after[0] != stage.Render {
		t.Fatalf("unexpected After(motion): %v", after)
	}
	if got := stage.After(stage.Render); len(got) != 0 {
		t.Fatalf("After(render) should be empty, got %v", got)
	}
}

func TestParseAcceptsDashes(t *testing.T) {
	s, ok := stage.Parse("quality-review")
	if !ok || s != stage.QualityReview {
		t.Fatalf("unexpected parse result: %v %v", s, ok)
	}
	if _, ok := stage.Parse("mixing"); ok {
		t.Fatal("unknown stage should not parse")
	}
}

func TestFinal(t *testing.T) {
	if !stage.Final(stage.Render) {
		t.Fatal("render is the final stage")
	}
	if stage.Final(stage.Motion) {
		t.Fatal("motion is not final")
	}
}

func TestLabel(t *testing.T) {
	if got := stage.BackgroundMusic.Label(); got != "Background Music" {
		t.Fatalf("unexpected label: %q", got)
	}
}
