package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"reelsmith/internal/logging"
	"reelsmith/internal/render"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
	"reelsmith/internal/textutil"
)

// runRender assembles the approved assets into the final container and
// records the artifact. Motion clips take precedence over stills; scenes
// with neither a visual nor narration are dropped with a warning. Scene
// sound effects ride the event mix at their scene's timeline offset.
func (p *Pipeline) runRender(ctx context.Context, output *store.Output) error {
	logger := logging.WithContext(ctx, p.logger)

	scenes, err := p.store.ListScenes(ctx, output.ID)
	if err != nil {
		return err
	}
	narrTracks, err := p.store.SceneNarrationTracks(ctx, output.ID)
	if err != nil {
		return err
	}

	clips := make([]render.SceneClip, 0, len(scenes))
	offsets := make(map[int64]int64, len(scenes))
	var timeline int64
	for _, scene := range scenes {
		narr, ok := narrTracks[scene.ID]
		if !ok || narr.Media.IsZero() {
			logger.Warn("scene has no narration; dropping from render",
				logging.Int(logging.FieldScene, scene.Order))
			continue
		}
		clip := render.SceneClip{
			Order:       scene.Order,
			Narration:   narr.Media,
			NarrationMS: narr.DurationMS,
		}
		if motion, err := p.store.SelectedAsset(ctx, scene.ID, store.AssetMotion, store.RoleStart); err == nil {
			clip.Visual = motion.Media
			clip.Motion = true
			clip.NativeDurationMS = motion.DurationMS
		} else if still, err := p.store.SelectedAsset(ctx, scene.ID, store.AssetImage, store.RoleStart); err == nil {
			clip.Visual = still.Media
		} else {
			logger.Warn("scene has no visual; dropping from render",
				logging.Int(logging.FieldScene, scene.Order))
			continue
		}
		offsets[scene.ID] = timeline
		timeline += narr.DurationMS
		clips = append(clips, clip)
	}
	if len(clips) == 0 {
		return services.Wrap(services.ErrPrecondition, string(stage.Render), "render",
			"no scene is renderable", nil)
	}

	var music []render.AudioMix
	musicTracks, err := p.store.ListTracks(ctx, output.ID, store.TrackBackgroundMusic)
	if err != nil {
		return err
	}
	for _, track := range musicTracks {
		music = append(music, render.AudioMix{
			Media:    track.Media,
			OffsetMS: track.OffsetMS,
			Gain:     p.cfg.Render.MusicGain,
		})
	}

	var events []render.AudioMix
	eventTracks, err := p.store.ListTracks(ctx, output.ID, store.TrackMusicEvent)
	if err != nil {
		return err
	}
	for _, track := range eventTracks {
		events = append(events, render.AudioMix{
			Media:    track.Media,
			OffsetMS: track.OffsetMS,
			Gain:     p.cfg.Render.EventGain,
		})
	}
	sfxTracks, err := p.store.ListTracks(ctx, output.ID, store.TrackSFX)
	if err != nil {
		return err
	}
	for _, track := range sfxTracks {
		offset, ok := offsets[track.SceneID]
		if !ok {
			continue
		}
		events = append(events, render.AudioMix{
			Media:    track.Media,
			OffsetMS: offset,
			Gain:     p.cfg.Render.EventGain,
		})
	}

	outPath := filepath.Join(p.cfg.Paths.LibraryDir, artifactName(output))
	result, err := p.renderer.Assemble(ctx, render.Input{
		OutputID:    output.ID,
		AspectRatio: output.AspectRatio,
		FrameRate:   p.cfg.Render.FrameRate,
		Scenes:      clips,
		Music:       music,
		Events:      events,
		OutPath:     outPath,
	})
	if err != nil {
		return err
	}

	info, err := os.Stat(result.Path)
	if err != nil {
		return fmt.Errorf("stat rendered file: %w", err)
	}
	options, err := json.Marshal(store.RenderOptions{
		MusicGain: p.cfg.Render.MusicGain,
		EventGain: p.cfg.Render.EventGain,
	})
	if err != nil {
		return fmt.Errorf("encode render options: %w", err)
	}
	if err := p.store.SaveRenderArtifact(ctx, &store.RenderArtifact{
		OutputID:    output.ID,
		Media:       store.MediaFromPath(result.Path),
		MediaType:   "video/mp4",
		ByteSize:    info.Size(),
		OptionsJSON: string(options),
	}); err != nil {
		return err
	}
	logger.Info("render artifact saved",
		logging.String("path", result.Path),
		logging.Int64("duration_ms", result.DurationMS),
		logging.Int64("bytes", info.Size()))
	if err := p.notifier.NotifyRenderCompleted(ctx, output.Title, result.Path); err != nil {
		logger.Warn("render notification failed", logging.Error(err))
	}
	return nil
}

func artifactName(output *store.Output) string {
	slug := textutil.Slug(output.Title, "output")
	short := output.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s.mp4", slug, short)
}
