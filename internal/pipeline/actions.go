package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

// Approve records a human approval for a stage. Approving render completes
// the output and leaves correction mode.
func (p *Pipeline) Approve(ctx context.Context, outputID string, st stage.Stage) error {
	output, err := p.store.GetOutput(ctx, outputID)
	if err != nil {
		return err
	}
	if err := p.store.ApproveStage(ctx, output.ID, st); err != nil {
		return err
	}
	if stage.Final(st) {
		if err := p.notifier.NotifyOutputCompleted(ctx, output.Title); err != nil {
			p.logger.Warn("completion notification failed", logging.Error(err))
		}
	}
	return nil
}

// Reject records a human rejection with feedback. Every later gate resets
// in the same transaction, so stale downstream work cannot be approved.
func (p *Pipeline) Reject(ctx context.Context, outputID string, st stage.Stage, feedback string) error {
	output, err := p.store.GetOutput(ctx, outputID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(feedback) == "" {
		return services.Wrap(services.ErrValidation, string(st), "reject",
			"rejection feedback is required", nil)
	}
	if err := p.store.RejectStage(ctx, output.ID, st, feedback); err != nil {
		return err
	}
	if err := p.notifier.NotifyStageRejected(ctx, output.Title, st.Label(), feedback); err != nil {
		p.logger.Warn("rejection notification failed", logging.Error(err))
	}
	return nil
}

// EnterCorrection reopens the visual stages of an approved output while the
// fitted narration, music, and effects stay approved. The images, motion,
// and render gates reset; everything in between keeps its status.
func (p *Pipeline) EnterCorrection(ctx context.Context, outputID string) error {
	output, err := p.store.GetOutput(ctx, outputID)
	if err != nil {
		return err
	}
	if err := p.store.SetCorrectionMode(ctx, output.ID, true); err != nil {
		return err
	}
	return p.store.ResetGates(ctx, output.ID, stage.Images, stage.Motion, stage.Render)
}

// RedoSceneImage regenerates one scene's start frame, optionally steering
// the prompt with extra guidance. The new frame becomes the selected asset
// and any motion clip derived from the old frame is discarded.
func (p *Pipeline) RedoSceneImage(ctx context.Context, sceneID int64, guidance string) error {
	scene, err := p.store.GetScene(ctx, sceneID)
	if err != nil {
		return err
	}
	output, err := p.store.GetOutput(ctx, scene.OutputID)
	if err != nil {
		return err
	}
	ctx = logging.WithOutput(ctx, output.ID)
	ctx = logging.WithScene(ctx, scene.Order)

	predecessor, predecessorImage, err := p.predecessorImage(ctx, output.ID, scene.Order)
	if err != nil {
		return err
	}
	if guidance = strings.TrimSpace(guidance); guidance != "" {
		scene.VisualDesc = scene.VisualDesc + ". " + guidance
	}
	if _, err := p.generateSceneImage(ctx, output, scene, predecessor, predecessorImage); err != nil {
		if errors.Is(err, services.ErrRestricted) {
			return p.store.SetSceneImageStatus(ctx, scene.ID, store.ImageRestricted, services.Detail(err))
		}
		return err
	}
	if err := p.store.SetSceneImageStatus(ctx, scene.ID, store.ImageGenerated, ""); err != nil {
		return err
	}
	// The old motion clip animates a frame that no longer exists.
	return p.store.DeleteAssetsForScene(ctx, scene.ID, store.AssetMotion)
}

// RedoSceneMotion regenerates one scene's motion clip from its currently
// selected frames.
func (p *Pipeline) RedoSceneMotion(ctx context.Context, sceneID int64) error {
	scene, err := p.store.GetScene(ctx, sceneID)
	if err != nil {
		return err
	}
	if scene.ImageStatus != store.ImageGenerated {
		return services.Wrap(services.ErrPrecondition, string(stage.Motion), "redo motion",
			fmt.Sprintf("scene %d has no generated image", scene.Order), nil)
	}
	output, err := p.store.GetOutput(ctx, scene.OutputID)
	if err != nil {
		return err
	}
	ctx = logging.WithOutput(ctx, output.ID)
	ctx = logging.WithScene(ctx, scene.Order)
	return p.animateScene(ctx, output, scene)
}

// ChangeVoice swaps the output's narration voice, discards every fitted
// narration clip, and reopens the pipeline from the narration stage so the
// new voice is refitted and downstream stages regenerate against it.
func (p *Pipeline) ChangeVoice(ctx context.Context, outputID, voice string) error {
	if strings.TrimSpace(voice) == "" {
		return services.Wrap(services.ErrValidation, string(stage.NarrationAudio), "change voice",
			"voice must not be empty", nil)
	}
	output, err := p.store.GetOutput(ctx, outputID)
	if err != nil {
		return err
	}
	output.Voice = voice
	if err := p.store.UpdateOutput(ctx, output); err != nil {
		return err
	}
	if err := p.store.DeleteTracks(ctx, output.ID, store.TrackNarration); err != nil {
		return err
	}
	return p.store.ResetGatesFrom(ctx, output.ID, stage.NarrationAudio)
}

// Reset returns an output to draft with every gate not_started.
func (p *Pipeline) Reset(ctx context.Context, outputID string) error {
	return p.store.ResetOutput(ctx, outputID)
}

// predecessorImage loads the previous scene and its selected start frame
// for continuity resolution during a single-scene redo.
func (p *Pipeline) predecessorImage(ctx context.Context, outputID string, order int) (*store.Scene, []byte, error) {
	if order == 0 {
		return nil, nil, nil
	}
	scenes, err := p.store.ListScenes(ctx, outputID)
	if err != nil {
		return nil, nil, err
	}
	for _, candidate := range scenes {
		if candidate.Order != order-1 {
			continue
		}
		asset, err := p.store.SelectedAsset(ctx, candidate.ID, store.AssetImage, store.RoleStart)
		if err != nil {
			return candidate, nil, nil
		}
		data, err := asset.Media.Bytes()
		if err != nil {
			return candidate, nil, nil
		}
		return candidate, data, nil
	}
	return nil, nil, nil
}
