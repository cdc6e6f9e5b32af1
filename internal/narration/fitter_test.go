package narration

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/services"
	"reelsmith/internal/services/speech"
)

func fitterConfig() config.Narration {
	return config.Narration{
		WordsPerMinute:   150,
		ToleranceSeconds: 0.75,
		MinRate:          0.9,
		MaxRate:          1.5,
		MaxAttempts:      4,
	}
}

// fakeSynth renders clips whose duration follows the natural pace divided
// by the requested rate, mimicking a well-behaved voice.
type fakeSynth struct {
	wordsPerMinute float64
	calls          int
	rates          []float64
	failAfter      int
}

func (f *fakeSynth) Synthesize(_ context.Context, req speech.Request) (speech.Clip, services.Cost, error) {
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return speech.Clip{}, services.Cost{}, services.Wrap(services.ErrTransient, "narration_audio", "synthesize", "provider flake", nil)
	}
	f.rates = append(f.rates, req.Rate)
	words := float64(len(strings.Fields(req.Text)))
	seconds := words / (f.wordsPerMinute / 60.0) / req.Rate
	return speech.Clip{
		Audio:           []byte("fake-audio"),
		Format:          "mp3",
		NominalDuration: time.Duration(seconds * float64(time.Second)),
	}, services.Cost{Resource: "narration", Units: 1, AmountUSD: 0.015}, nil
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func nominalProbe(_ context.Context, _ []byte, _ string) (int64, error) {
	return 0, errors.New("probe unavailable")
}

func TestFitHitsBudgetFirstAttempt(t *testing.T) {
	synth := &fakeSynth{wordsPerMinute: 150}
	fitter := NewFitter(synth, nominalProbe, fitterConfig(), nil)

	// 50 words at 150wpm is 20s of natural speech against a 20s budget.
	result, err := fitter.Fit(context.Background(), words(50), "voice", 20)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !result.WithinTolerance {
		t.Fatalf("expected within tolerance, measured %dms", result.MeasuredMS)
	}
	if result.Attempts != 1 {
		t.Fatalf("expected single attempt, got %d", result.Attempts)
	}
	if len(result.Costs) != 1 {
		t.Fatalf("expected one cost entry, got %d", len(result.Costs))
	}
}

func TestFitAcceptsShortResult(t *testing.T) {
	synth := &fakeSynth{wordsPerMinute: 150}
	fitter := NewFitter(synth, nominalProbe, fitterConfig(), nil)

	// 20 words is only 8s of natural speech; the controller must not slow
	// the voice down to fill a 20s budget.
	result, err := fitter.Fit(context.Background(), words(20), "voice", 20)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.Attempts != 1 {
		t.Fatalf("expected single attempt for short result, got %d", result.Attempts)
	}
	if result.Rate < 0.9 {
		t.Fatalf("rate fell below lower bound: %f", result.Rate)
	}
	if result.MeasuredMS >= 20000 {
		t.Fatalf("expected short clip accepted, measured %dms", result.MeasuredMS)
	}
}

func TestFitSpeedsUpLongResult(t *testing.T) {
	// A voice that runs 20% slower than assumed, so the first attempt
	// overshoots and a proportional correction is needed.
	synth := &fakeSynth{wordsPerMinute: 125}
	fitter := NewFitter(synth, nominalProbe, fitterConfig(), nil)

	result, err := fitter.Fit(context.Background(), words(50), "voice", 20)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !result.WithinTolerance {
		t.Fatalf("expected corrected fit, measured %dms at rate %f", result.MeasuredMS, result.Rate)
	}
	if result.Attempts < 2 {
		t.Fatalf("expected a correction attempt, got %d", result.Attempts)
	}
	for i := 1; i < len(synth.rates); i++ {
		if synth.rates[i] <= synth.rates[i-1] {
			t.Fatalf("correction must only speed up: %v", synth.rates)
		}
	}
}

func TestFitRespectsRateCeiling(t *testing.T) {
	synth := &fakeSynth{wordsPerMinute: 150}
	fitter := NewFitter(synth, nominalProbe, fitterConfig(), nil)

	// 120 words in 20s needs rate 2.4, far past the 1.5 ceiling. The
	// controller keeps its closest attempt instead of erroring.
	result, err := fitter.Fit(context.Background(), words(120), "voice", 20)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.WithinTolerance {
		t.Fatal("expected shortfall for impossible budget")
	}
	if result.Rate > 1.5 {
		t.Fatalf("rate exceeded upper bound: %f", result.Rate)
	}
	if result.Attempts > fitterConfig().MaxAttempts {
		t.Fatalf("attempt count exceeded max: %d", result.Attempts)
	}
	if len(result.Clip.Audio) == 0 {
		t.Fatal("expected best take kept")
	}
}

func TestFitKeepsBestTakeOnLaterFailure(t *testing.T) {
	synth := &fakeSynth{wordsPerMinute: 110, failAfter: 1}
	fitter := NewFitter(synth, nominalProbe, fitterConfig(), nil)

	result, err := fitter.Fit(context.Background(), words(50), "voice", 20)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.Attempts != 1 {
		t.Fatalf("expected first attempt kept, got %d", result.Attempts)
	}
	if len(result.Clip.Audio) == 0 {
		t.Fatal("expected best take kept after provider failure")
	}
}

func TestFitFirstAttemptFailurePropagates(t *testing.T) {
	fitter := NewFitter(&failingSynth{}, nominalProbe, fitterConfig(), nil)

	if _, err := fitter.Fit(context.Background(), words(10), "voice", 20); err == nil {
		t.Fatal("expected error when the first attempt fails")
	}
}

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, speech.Request) (speech.Clip, services.Cost, error) {
	return speech.Clip{}, services.Cost{}, services.Wrap(services.ErrTransient, "narration_audio", "synthesize", "down", nil)
}

func TestHookScenarioBudgets(t *testing.T) {
	// A 4-scene hook production: per-scene budgets proportional to word
	// counts sum to the 20s target, and every clip lands inside its budget
	// when the required rate stays inside bounds.
	counts := []int{45, 50, 50, 55}
	budgets := Budgets(counts, 20)

	var sum float64
	for _, budget := range budgets {
		sum += budget
	}
	if math.Abs(sum-20) > 1e-9 {
		t.Fatalf("budgets must sum to target, got %f", sum)
	}
	want := []float64{4.5, 5.0, 5.0, 5.5}
	for i := range want {
		if math.Abs(budgets[i]-want[i]) > 1e-9 {
			t.Fatalf("budget %d: expected %f, got %f", i, want[i], budgets[i])
		}
	}

	fitter := NewFitter(&fakeSynth{wordsPerMinute: 150}, nominalProbe, fitterConfig(), nil)
	var totalMS int64
	for i, count := range counts {
		// Scale word counts into realistic scene narrations around 11-14
		// words per budgeted second of speech.
		text := words(count / 4)
		result, err := fitter.Fit(context.Background(), text, "voice", budgets[i])
		if err != nil {
			t.Fatalf("Fit scene %d: %v", i, err)
		}
		if result.MeasuredMS > 22000 {
			t.Fatalf("scene %d clip exceeds 22s: %dms", i, result.MeasuredMS)
		}
		totalMS += result.MeasuredMS
	}
	if totalMS > 22000 {
		t.Fatalf("total narration exceeds budget window: %dms", totalMS)
	}
}

func TestBudgetsEvenSplitWithoutWords(t *testing.T) {
	budgets := Budgets([]int{0, 0}, 10)
	if len(budgets) != 2 || budgets[0] != 5 || budgets[1] != 5 {
		t.Fatalf("expected even split, got %v", budgets)
	}
}
