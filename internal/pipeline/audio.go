package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/logging"
	"reelsmith/internal/narration"
	"reelsmith/internal/services"
	"reelsmith/internal/services/musicgen"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

// eventSeconds maps an edit plan cue kind to a composed clip length.
func eventSeconds(kind string) float64 {
	switch kind {
	case "stinger":
		return 2
	case "riser":
		return 4
	case "drop":
		return 4
	default:
		return 3
	}
}

// sceneDurationsMS returns each scene's timeline length. The measured
// narration duration is authoritative once narration has been fitted; until
// then the word count at the output's configured pace stands in.
func (p *Pipeline) sceneDurationsMS(scenes []*store.Scene, tracks map[int64]*store.AudioTrack, wpm int) []int64 {
	durations := make([]int64, len(scenes))
	for i, scene := range scenes {
		if track, ok := tracks[scene.ID]; ok && track.DurationMS > 0 {
			durations[i] = track.DurationMS
			continue
		}
		words := narration.WordCount(scene.Narration)
		if wpm <= 0 {
			wpm = 150
		}
		durations[i] = int64(float64(words) / (float64(wpm) / 60) * 1000)
	}
	return durations
}

// runBackgroundMusic composes the output's music bed. Short outputs get a
// single track covering the whole timeline; long ones are split into
// per-segment tracks so the music can follow the script's movement. The
// edit plan's music mode, when set, overrides the scene-count threshold.
func (p *Pipeline) runBackgroundMusic(ctx context.Context, output *store.Output) error {
	scenes, err := p.store.ListScenes(ctx, output.ID)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrPrecondition, string(stage.BackgroundMusic), "compose music",
			"output has no scenes", nil)
	}
	narrTracks, err := p.store.SceneNarrationTracks(ctx, output.ID)
	if err != nil {
		return err
	}
	plan, err := p.editPlan(output)
	if err != nil {
		return err
	}
	durations := p.sceneDurationsMS(scenes, narrTracks, output.WordsPerMinute)

	segmented := false
	switch plan.MusicMode {
	case "segmented":
		segmented = true
	case "single":
		segmented = false
	default:
		segmented = p.cfg.Pipeline.SegmentedMusicMinScenes > 0 &&
			len(scenes) >= p.cfg.Pipeline.SegmentedMusicMinScenes
	}

	type segment struct {
		offsetMS int64
		lengthMS int64
	}
	var segments []segment
	if segmented {
		per := p.cfg.Pipeline.MusicSegmentScenes
		if per <= 0 {
			per = 4
		}
		var offset int64
		for start := 0; start < len(scenes); start += per {
			end := start + per
			if end > len(scenes) {
				end = len(scenes)
			}
			var length int64
			for _, d := range durations[start:end] {
				length += d
			}
			segments = append(segments, segment{offsetMS: offset, lengthMS: length})
			offset += length
		}
	} else {
		var total int64
		for _, d := range durations {
			total += d
		}
		segments = []segment{{offsetMS: 0, lengthMS: total}}
	}

	if err := p.store.DeleteTracks(ctx, output.ID, store.TrackBackgroundMusic); err != nil {
		return err
	}

	prompt := musicPrompt(output, plan.Notes)
	logger := logging.WithContext(ctx, p.logger)
	var attempted, succeeded, failed int
	for i, seg := range segments {
		if seg.lengthMS <= 0 {
			continue
		}
		attempted++
		track, cost, err := p.music.Compose(ctx, musicgen.Request{
			Prompt:  prompt,
			Seconds: float64(seg.lengthMS) / 1000,
			Kind:    musicgen.KindMusic,
		})
		p.record(output.ID, cost)
		if err != nil {
			failed++
			logger.Error("music segment composition failed", logging.Int("segment", i), logging.Error(err))
			continue
		}
		media, err := p.persistMedia(fmt.Sprintf("%s-music-%02d.%s", output.ID, i, audioExt(track.Format)), track.Audio)
		if err != nil {
			failed++
			logger.Error("music segment composition failed", logging.Int("segment", i), logging.Error(err))
			continue
		}
		if err := p.store.AddOutputTrack(ctx, &store.AudioTrack{
			OutputID:   output.ID,
			Type:       store.TrackBackgroundMusic,
			Media:      media,
			DurationMS: track.Duration.Milliseconds(),
			OffsetMS:   seg.offsetMS,
		}); err != nil {
			failed++
			logger.Error("music segment composition failed", logging.Int("segment", i), logging.Error(err))
			continue
		}
		succeeded++
	}

	logger.Info("background music finished",
		logging.Int("attempted", attempted),
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed))

	if attempted > 0 && succeeded == 0 {
		return services.Wrap(services.ErrExternalTool, string(stage.BackgroundMusic), "compose music",
			fmt.Sprintf("no segment produced music (%d failed)", failed), nil)
	}
	return nil
}

func musicPrompt(output *store.Output, notes string) string {
	parts := []string{fmt.Sprintf("Background music for a short narrated video titled %q.", output.Title)}
	if output.Style.Atmosphere != "" {
		parts = append(parts, "Atmosphere: "+output.Style.Atmosphere+".")
	}
	if strings.TrimSpace(notes) != "" {
		parts = append(parts, notes)
	}
	return strings.Join(parts, " ")
}

func audioExt(format string) string {
	if format == "" {
		return "mp3"
	}
	return format
}

// runSoundEffects composes one ambience track per scene that asks for one.
// Scenes without an audio description stay silent apart from narration.
func (p *Pipeline) runSoundEffects(ctx context.Context, output *store.Output) error {
	scenes, err := p.store.ListScenes(ctx, output.ID)
	if err != nil {
		return err
	}
	narrTracks, err := p.store.SceneNarrationTracks(ctx, output.ID)
	if err != nil {
		return err
	}
	durations := p.sceneDurationsMS(scenes, narrTracks, output.WordsPerMinute)

	var attempted, succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchSize())
	for i, scene := range scenes {
		i, scene := i, scene
		if strings.TrimSpace(scene.AudioDesc) == "" {
			continue
		}
		g.Go(func() error {
			logger := logging.WithContext(logging.WithScene(gctx, scene.Order), p.logger)
			attempted.Add(1)
			track, cost, err := p.music.Compose(gctx, musicgen.Request{
				Prompt:  scene.AudioDesc,
				Seconds: float64(durations[i]) / 1000,
				Kind:    musicgen.KindSFX,
			})
			p.record(output.ID, cost)
			if err != nil {
				failed.Add(1)
				logger.Error("scene sound effects failed", logging.Error(err))
				return nil
			}
			media, err := p.persistMedia(fmt.Sprintf("%s-scene-%03d-sfx.%s", output.ID, scene.Order, audioExt(track.Format)), track.Audio)
			if err != nil {
				failed.Add(1)
				logger.Error("scene sound effects failed", logging.Error(err))
				return nil
			}
			if err := p.store.ReplaceSceneTrack(gctx, &store.AudioTrack{
				OutputID:   output.ID,
				SceneID:    scene.ID,
				Type:       store.TrackSFX,
				Media:      media,
				DurationMS: track.Duration.Milliseconds(),
			}); err != nil {
				failed.Add(1)
				logger.Error("scene sound effects failed", logging.Error(err))
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logging.WithContext(ctx, p.logger).Info("sound effects finished",
		logging.Int64("attempted", attempted.Load()),
		logging.Int64("succeeded", succeeded.Load()),
		logging.Int64("failed", failed.Load()))

	if attempted.Load() > 0 && succeeded.Load() == 0 {
		return services.Wrap(services.ErrExternalTool, string(stage.SoundEffects), "compose sound effects",
			fmt.Sprintf("no scene produced sound effects (%d failed)", failed.Load()), nil)
	}
	return nil
}

// runNarrationAudio fits each scene's narration into its share of the
// output's duration target. Word counts apportion the budget; the fitter
// speeds delivery up across attempts until the measured clip lands inside
// tolerance.
func (p *Pipeline) runNarrationAudio(ctx context.Context, output *store.Output) error {
	scenes, err := p.store.ListScenes(ctx, output.ID)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrPrecondition, string(stage.NarrationAudio), "fit narration",
			"output has no scenes", nil)
	}

	wordCounts := make([]int, len(scenes))
	for i, scene := range scenes {
		wordCounts[i] = narration.WordCount(scene.Narration)
	}
	budgets := narration.Budgets(wordCounts, float64(output.TargetSeconds))

	var mu sync.Mutex
	var failures []string
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchSize())
	for i, scene := range scenes {
		i, scene := i, scene
		g.Go(func() error {
			logger := logging.WithContext(logging.WithScene(gctx, scene.Order), p.logger)
			result, err := p.fitter.Fit(gctx, scene.Narration, output.Voice, budgets[i])
			p.record(output.ID, result.Costs...)
			if err != nil {
				logger.Error("narration fitting failed", logging.Error(err))
				mu.Lock()
				failures = append(failures, fmt.Sprintf("scene %d: %v", scene.Order, err))
				mu.Unlock()
				return nil
			}
			if !result.WithinTolerance {
				logger.Warn("narration missed its budget; keeping closest take",
					logging.Float64("budget_seconds", budgets[i]),
					logging.Int64("measured_ms", result.MeasuredMS),
					logging.Int("attempts", result.Attempts))
			}
			var alignment string
			if len(result.Clip.Alignment) > 0 {
				if encoded, err := json.Marshal(result.Clip.Alignment); err == nil {
					alignment = string(encoded)
				}
			}
			media, err := p.persistMedia(fmt.Sprintf("%s-scene-%03d-narration.%s", output.ID, scene.Order, audioExt(result.Clip.Format)), result.Clip.Audio)
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("scene %d: %v", scene.Order, err))
				mu.Unlock()
				return nil
			}
			if err := p.store.ReplaceSceneTrack(gctx, &store.AudioTrack{
				OutputID:      output.ID,
				SceneID:       scene.ID,
				Type:          store.TrackNarration,
				Media:         media,
				DurationMS:    result.MeasuredMS,
				AlignmentJSON: alignment,
			}); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("scene %d: %v", scene.Order, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrExternalTool, string(stage.NarrationAudio), "fit narration",
			fmt.Sprintf("%d of %d scenes failed: %s", len(failures), len(scenes), strings.Join(failures, "; ")), nil)
	}
	return nil
}

// runMusicEvents realizes the edit plan's timed cues as short clips placed
// at absolute offsets. Silence cues reserve a gap and compose nothing.
func (p *Pipeline) runMusicEvents(ctx context.Context, output *store.Output) error {
	plan, err := p.editPlan(output)
	if err != nil {
		return err
	}
	if err := p.store.DeleteTracks(ctx, output.ID, store.TrackMusicEvent); err != nil {
		return err
	}

	logger := logging.WithContext(ctx, p.logger)
	var attempted, succeeded, failed int
	for i, cue := range plan.Cues {
		if cue.Kind == "silence" {
			continue
		}
		attempted++
		track, cost, err := p.music.Compose(ctx, musicgen.Request{
			Prompt:  cue.Description,
			Seconds: eventSeconds(cue.Kind),
			Kind:    musicgen.KindEvent,
		})
		p.record(output.ID, cost)
		if err != nil {
			failed++
			logger.Error("music cue composition failed",
				logging.Int("cue", i), logging.String("kind", cue.Kind), logging.Error(err))
			continue
		}
		media, err := p.persistMedia(fmt.Sprintf("%s-event-%02d.%s", output.ID, i, audioExt(track.Format)), track.Audio)
		if err != nil {
			failed++
			logger.Error("music cue composition failed",
				logging.Int("cue", i), logging.String("kind", cue.Kind), logging.Error(err))
			continue
		}
		if err := p.store.AddOutputTrack(ctx, &store.AudioTrack{
			OutputID:   output.ID,
			Type:       store.TrackMusicEvent,
			Media:      media,
			DurationMS: track.Duration.Milliseconds(),
			OffsetMS:   cue.OffsetMS,
		}); err != nil {
			failed++
			logger.Error("music cue composition failed",
				logging.Int("cue", i), logging.String("kind", cue.Kind), logging.Error(err))
			continue
		}
		succeeded++
	}

	logger.Info("music events finished",
		logging.Int("attempted", attempted),
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed))

	if attempted > 0 && succeeded == 0 {
		return services.Wrap(services.ErrExternalTool, string(stage.MusicEvents), "compose events",
			fmt.Sprintf("no cue produced a clip (%d failed)", failed), nil)
	}
	return nil
}
