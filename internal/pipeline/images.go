package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/continuity"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/services/imagegen"
	"reelsmith/internal/services/motiongen"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

// imageCounters aggregates per-scene outcomes across concurrent chains.
type imageCounters struct {
	attempted  atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	restricted atomic.Int64
}

// runImages generates one start frame per scene (plus an end frame when the
// scene names one). Scenes that share an environment run serially in order
// so each can reference its predecessor's image; independent chains fan out
// under the configured batch size. A content-policy refusal parks the scene
// as restricted and the batch keeps going.
func (p *Pipeline) runImages(ctx context.Context, output *store.Output) error {
	scenes, err := p.store.ListScenes(ctx, output.ID)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrPrecondition, string(stage.Images), "generate images",
			"output has no scenes", nil)
	}

	chains := chainScenes(scenes, p.refs)
	var counters imageCounters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchSize())
	for _, chain := range chains {
		chain := chain
		g.Go(func() error {
			p.runImageChain(gctx, output, chain, &counters)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger := logging.WithContext(ctx, p.logger)
	logger.Info("image generation finished",
		logging.Int64("attempted", counters.attempted.Load()),
		logging.Int64("succeeded", counters.succeeded.Load()),
		logging.Int64("failed", counters.failed.Load()),
		logging.Int64("restricted", counters.restricted.Load()))

	if counters.attempted.Load() > 0 && counters.succeeded.Load() == 0 {
		return services.Wrap(services.ErrExternalTool, string(stage.Images), "generate images",
			fmt.Sprintf("no scene produced an image (%d failed, %d restricted)",
				counters.failed.Load(), counters.restricted.Load()), nil)
	}
	return nil
}

// chainScenes splits the ordered scene list into runs that must execute
// serially. A scene joins the previous run when its image depends on the
// predecessor's; every other scene starts a new, independent run.
func chainScenes(scenes []*store.Scene, refs continuity.Source) [][]*store.Scene {
	var chains [][]*store.Scene
	for i, scene := range scenes {
		if i > 0 && continuity.DependsOnPredecessor(scene, scenes[i-1], refs) {
			chains[len(chains)-1] = append(chains[len(chains)-1], scene)
			continue
		}
		chains = append(chains, []*store.Scene{scene})
	}
	return chains
}

func (p *Pipeline) runImageChain(ctx context.Context, output *store.Output, chain []*store.Scene, counters *imageCounters) {
	var predecessor *store.Scene
	var predecessorImage []byte
	for _, scene := range chain {
		logger := logging.WithContext(logging.WithScene(ctx, scene.Order), p.logger)

		if scene.ImageStatus == store.ImageGenerated {
			// Already has an approved-in-place image (redo or re-run);
			// keep it and carry it forward for continuity.
			if asset, err := p.store.SelectedAsset(ctx, scene.ID, store.AssetImage, store.RoleStart); err == nil {
				if data, err := asset.Media.Bytes(); err == nil {
					predecessorImage = data
				}
			}
			predecessor = scene
			continue
		}

		counters.attempted.Add(1)
		data, err := p.generateSceneImage(ctx, output, scene, predecessor, predecessorImage)
		switch {
		case errors.Is(err, services.ErrRestricted):
			counters.restricted.Add(1)
			logger.Warn("scene image blocked by provider policy",
				logging.String("reason", services.Detail(err)))
			if statusErr := p.store.SetSceneImageStatus(ctx, scene.ID, store.ImageRestricted, services.Detail(err)); statusErr != nil {
				logger.Error("failed to mark scene restricted", logging.Error(statusErr))
			}
			predecessorImage = nil
		case err != nil:
			counters.failed.Add(1)
			logger.Error("scene image generation failed", logging.Error(err))
			if statusErr := p.store.SetSceneImageStatus(ctx, scene.ID, store.ImageError, err.Error()); statusErr != nil {
				logger.Error("failed to mark scene errored", logging.Error(statusErr))
			}
			predecessorImage = nil
		default:
			counters.succeeded.Add(1)
			if statusErr := p.store.SetSceneImageStatus(ctx, scene.ID, store.ImageGenerated, ""); statusErr != nil {
				logger.Error("failed to mark scene generated", logging.Error(statusErr))
			}
			predecessorImage = data
		}
		predecessor = scene
	}
}

// generateSceneImage produces and persists the scene's start frame, and an
// end frame anchored on it when the scene describes one. It returns the
// start frame bytes for the successor's continuity reference.
func (p *Pipeline) generateSceneImage(ctx context.Context, output *store.Output, scene, predecessor *store.Scene, predecessorImage []byte) ([]byte, error) {
	ref := continuity.Resolve(scene, predecessor, predecessorImage, p.refs)
	prompt := continuity.BuildPrompt(output.Style, ref, scene.VisualDesc)
	img, cost, err := p.images.Generate(ctx, imagegen.Request{
		Prompt:      prompt,
		AspectRatio: output.AspectRatio,
		Reference:   imageReference(ref),
	})
	p.record(output.ID, cost)
	if err != nil {
		return nil, err
	}
	if err := p.saveImageAsset(ctx, output, scene, store.RoleStart, prompt, img, 0); err != nil {
		return nil, err
	}

	if scene.EndVisualDesc != "" {
		endPrompt := continuity.BuildPrompt(output.Style, nil, scene.EndVisualDesc)
		endRef := &continuity.Reference{Data: img.Data, Weight: continuity.StrongWeight}
		endImg, endCost, err := p.images.Generate(ctx, imagegen.Request{
			Prompt:      endPrompt,
			AspectRatio: output.AspectRatio,
			Reference:   imageReference(endRef),
		})
		p.record(output.ID, endCost)
		if err != nil {
			return nil, err
		}
		if err := p.saveImageAsset(ctx, output, scene, store.RoleEnd, endPrompt, endImg, 0); err != nil {
			return nil, err
		}
	}
	return img.Data, nil
}

func (p *Pipeline) saveImageAsset(ctx context.Context, output *store.Output, scene *store.Scene, role store.AssetRole, prompt string, img imagegen.Image, derivedFrom int64) error {
	media, err := p.persistMedia(fmt.Sprintf("%s-scene-%03d-%s.png", output.ID, scene.Order, role), img.Data)
	if err != nil {
		return err
	}
	return p.store.AddAsset(ctx, &store.Asset{
		SceneID:     scene.ID,
		Kind:        store.AssetImage,
		Role:        role,
		Selected:    true,
		Media:       media,
		Width:       img.Width,
		Height:      img.Height,
		Prompt:      prompt,
		Provider:    imagegen.ProviderLabel,
		DerivedFrom: derivedFrom,
	})
}

func imageReference(ref *continuity.Reference) *imagegen.Reference {
	if ref == nil {
		return nil
	}
	return &imagegen.Reference{Data: ref.Data, Weight: ref.Weight}
}

// runMotion animates each scene's selected start frame into a short clip.
// Scenes without a generated image are skipped; a failed animation leaves
// the scene rendering as a still, so it only fails the stage when nothing
// animates at all.
func (p *Pipeline) runMotion(ctx context.Context, output *store.Output) error {
	scenes, err := p.store.ListScenes(ctx, output.ID)
	if err != nil {
		return err
	}

	var attempted, succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchSize())
	for _, scene := range scenes {
		scene := scene
		if scene.ImageStatus != store.ImageGenerated {
			continue
		}
		g.Go(func() error {
			logger := logging.WithContext(logging.WithScene(gctx, scene.Order), p.logger)
			attempted.Add(1)
			if err := p.animateScene(gctx, output, scene); err != nil {
				failed.Add(1)
				logger.Error("scene motion generation failed", logging.Error(err))
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger := logging.WithContext(ctx, p.logger)
	logger.Info("motion generation finished",
		logging.Int64("attempted", attempted.Load()),
		logging.Int64("succeeded", succeeded.Load()),
		logging.Int64("failed", failed.Load()))

	if attempted.Load() > 0 && succeeded.Load() == 0 {
		return services.Wrap(services.ErrExternalTool, string(stage.Motion), "generate motion",
			fmt.Sprintf("no scene produced a motion clip (%d failed)", failed.Load()), nil)
	}
	return nil
}

func (p *Pipeline) animateScene(ctx context.Context, output *store.Output, scene *store.Scene) error {
	start, err := p.store.SelectedAsset(ctx, scene.ID, store.AssetImage, store.RoleStart)
	if err != nil {
		return err
	}
	startFrame, err := start.Media.Bytes()
	if err != nil {
		return err
	}
	var endFrame []byte
	if end, err := p.store.SelectedAsset(ctx, scene.ID, store.AssetImage, store.RoleEnd); err == nil {
		endFrame, err = end.Media.Bytes()
		if err != nil {
			return err
		}
	}

	prompt := scene.VisualDesc
	if scene.EndVisualDesc != "" {
		prompt = fmt.Sprintf("%s, ending on %s", scene.VisualDesc, scene.EndVisualDesc)
	}
	clip, cost, err := p.motion.Generate(ctx, motiongen.Request{
		StartFrame: startFrame,
		EndFrame:   endFrame,
		Prompt:     prompt,
	})
	p.record(output.ID, cost)
	if err != nil {
		return err
	}
	media, err := p.persistMedia(fmt.Sprintf("%s-scene-%03d-motion.mp4", output.ID, scene.Order), clip.Data)
	if err != nil {
		return err
	}
	return p.store.AddAsset(ctx, &store.Asset{
		SceneID:     scene.ID,
		Kind:        store.AssetMotion,
		Role:        store.RoleStart,
		Selected:    true,
		Media:       media,
		Width:       clip.Width,
		Height:      clip.Height,
		DurationMS:  clip.NativeDuration.Milliseconds(),
		Prompt:      prompt,
		Provider:    motiongen.ProviderLabel,
		DerivedFrom: start.ID,
	})
}
