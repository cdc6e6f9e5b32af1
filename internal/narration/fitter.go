// Package narration drives the speech adapter through bounded retries so a
// synthesized clip lands inside its time budget. The controller is
// proportional with one-sided correction: a clip that runs long speeds up
// the next attempt, a clip that runs short is accepted as-is, because
// padded slow speech reads as bad narration.
package narration

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
	"reelsmith/internal/services/speech"
)

// Synthesizer is the slice of the speech client the fitter needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, req speech.Request) (speech.Clip, services.Cost, error)
}

// Prober measures the real duration of rendered audio in milliseconds.
type Prober func(ctx context.Context, audio []byte, format string) (int64, error)

// FFprobeProber measures durations with the ffprobe binary.
func FFprobeProber(binary string) Prober {
	return func(ctx context.Context, audio []byte, format string) (int64, error) {
		result, err := ffprobe.InspectBytes(ctx, binary, audio, format)
		if err != nil {
			return 0, err
		}
		return result.DurationMS(), nil
	}
}

// Result is the outcome of a fitting run.
type Result struct {
	Clip speech.Clip
	// Rate is the speed multiplier the kept clip was synthesized at.
	Rate float64
	// MeasuredMS is the probed duration of the kept clip.
	MeasuredMS int64
	Attempts   int
	// WithinTolerance reports whether the kept clip met the budget. A false
	// value is a shortfall, not an error; the closest attempt is kept.
	WithinTolerance bool
	// Costs holds one entry per synthesis attempt, all of which were billed.
	Costs []services.Cost
}

// Fitter adjusts speech rate across attempts until measured duration matches
// the budget within tolerance.
type Fitter struct {
	synth  Synthesizer
	probe  Prober
	cfg    config.Narration
	logger *slog.Logger
}

// NewFitter builds a fitter from the narration settings.
func NewFitter(synth Synthesizer, probe Prober, cfg config.Narration, logger *slog.Logger) *Fitter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fitter{
		synth:  synth,
		probe:  probe,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "narration"),
	}
}

// Fit synthesizes the text at most cfg.MaxAttempts times, returning the
// attempt closest to the budget. A result shorter than the budget is
// accepted immediately rather than re-synthesized slower.
func (f *Fitter) Fit(ctx context.Context, text, voice string, budgetSeconds float64) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, services.Wrap(services.ErrValidation, "narration_audio", "fit", "empty narration text", nil)
	}
	if budgetSeconds <= 0 {
		return Result{}, services.Wrap(services.ErrValidation, "narration_audio", "fit", "non-positive budget", nil)
	}

	budgetMS := int64(math.Round(budgetSeconds * 1000))
	toleranceMS := int64(math.Round(f.cfg.ToleranceSeconds * 1000))
	maxAttempts := f.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	rate := f.clampRate(f.baselineRate(text, budgetSeconds))
	var (
		result  Result
		bestGap = int64(math.MaxInt64)
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		clip, cost, err := f.synth.Synthesize(ctx, speech.Request{Text: text, Voice: voice, Rate: rate})
		if err != nil {
			if result.Attempts == 0 {
				return Result{}, err
			}
			// Keep the best earlier attempt rather than failing the scene.
			f.logger.Warn("synthesis attempt failed, keeping best take",
				logging.Int("attempt", attempt), logging.Error(err))
			break
		}
		result.Costs = append(result.Costs, cost)
		result.Attempts = attempt

		measured := f.measure(ctx, clip)
		gap := measured - budgetMS
		absGap := gap
		if absGap < 0 {
			absGap = -absGap
		}
		if absGap < bestGap {
			bestGap = absGap
			result.Clip = clip
			result.Rate = rate
			result.MeasuredMS = measured
		}

		switch {
		case absGap <= toleranceMS:
			result.WithinTolerance = true
			return result, nil
		case gap < 0:
			// Short of budget: accept rather than slow the voice down.
			return result, nil
		}

		next := f.clampRate(rate * float64(measured) / float64(budgetMS))
		if next <= rate {
			// Already at the ceiling; more attempts cannot get closer.
			break
		}
		rate = next
	}

	f.logger.Debug("budget not met, keeping closest take",
		logging.Int64("budget_ms", budgetMS),
		logging.Int64("measured_ms", result.MeasuredMS),
		logging.Int("attempts", result.Attempts))
	return result, nil
}

// baselineRate estimates the speed multiplier needed to speak the text in
// the budget at the configured natural words-per-minute pace.
func (f *Fitter) baselineRate(text string, budgetSeconds float64) float64 {
	wpm := f.cfg.WordsPerMinute
	if wpm <= 0 {
		wpm = 150
	}
	words := float64(len(strings.Fields(text)))
	naturalSeconds := words / (float64(wpm) / 60.0)
	if naturalSeconds <= 0 {
		return 1.0
	}
	return naturalSeconds / budgetSeconds
}

func (f *Fitter) clampRate(rate float64) float64 {
	minRate, maxRate := f.cfg.MinRate, f.cfg.MaxRate
	if minRate <= 0 {
		minRate = 0.9
	}
	if maxRate <= 0 {
		maxRate = 1.5
	}
	return math.Min(math.Max(rate, minRate), maxRate)
}

// measure probes the rendered audio; when probing fails the provider's
// nominal estimate is the fallback.
func (f *Fitter) measure(ctx context.Context, clip speech.Clip) int64 {
	if f.probe != nil {
		if measured, err := f.probe(ctx, clip.Audio, clip.Format); err == nil && measured > 0 {
			return measured
		} else if err != nil {
			f.logger.Warn("duration probe failed, using nominal estimate", logging.Error(err))
		}
	}
	return clip.NominalDuration.Milliseconds()
}

// Budgets splits a whole-output duration target across scenes in proportion
// to narration word counts, so wordy scenes get the time they need while
// the total still sums to the target.
func Budgets(wordCounts []int, targetSeconds float64) []float64 {
	if len(wordCounts) == 0 {
		return nil
	}
	total := 0
	for _, count := range wordCounts {
		total += count
	}
	budgets := make([]float64, len(wordCounts))
	if total == 0 {
		even := targetSeconds / float64(len(wordCounts))
		for i := range budgets {
			budgets[i] = even
		}
		return budgets
	}
	for i, count := range wordCounts {
		budgets[i] = targetSeconds * float64(count) / float64(total)
	}
	return budgets
}

// WordCount counts whitespace-delimited words the same way the baseline
// rate estimate does.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
