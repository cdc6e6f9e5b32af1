package pipeline

import (
	"context"
	"fmt"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

// Run executes one stage for an output. It refuses to run unless every
// earlier gate is approved and the stage itself is not already approved,
// marks the gate generating, and hands the result to human review. Stage
// failures mark the output failed and fire an error notification; they never
// advance the gate.
func (p *Pipeline) Run(ctx context.Context, outputID string, st stage.Stage) error {
	output, err := p.store.GetOutput(ctx, outputID)
	if err != nil {
		return err
	}
	ctx = logging.WithOutput(ctx, output.ID)
	ctx = logging.WithStage(ctx, string(st))
	logger := logging.WithContext(ctx, p.logger)

	if err := p.checkGates(ctx, output.ID, st); err != nil {
		return err
	}
	if err := p.store.MarkGenerating(ctx, output.ID, st); err != nil {
		return err
	}

	logger.Info("stage execution started",
		logging.String(logging.FieldEventType, "stage_start"))
	started := time.Now()
	if err := p.execute(ctx, st, output); err != nil {
		logger.Error("stage execution failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err))
		if statusErr := p.store.SetOutputStatus(ctx, output.ID, store.OutputFailed, err.Error()); statusErr != nil {
			logger.Error("failed to persist output failure", logging.Error(statusErr))
		}
		if notifyErr := p.notifier.NotifyError(ctx, err, fmt.Sprintf("%s / %s", output.Title, st.Label())); notifyErr != nil {
			logger.Warn("error notification failed", logging.Error(notifyErr))
		}
		return err
	}
	logger.Info("stage execution complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)))
	if err := p.notifier.NotifyReviewReady(ctx, output.Title, st.Label()); err != nil {
		logger.Warn("review notification failed", logging.Error(err))
	}
	return nil
}

// RunNext executes the first gate that is not yet approved, or reports
// there is nothing left to run.
func (p *Pipeline) RunNext(ctx context.Context, outputID string) (stage.Stage, error) {
	gates, err := p.store.ListGates(ctx, outputID)
	if err != nil {
		return "", err
	}
	for _, gate := range gates {
		if gate.Status != stage.GateApproved {
			return gate.Stage, p.Run(ctx, outputID, gate.Stage)
		}
	}
	return "", services.Wrap(services.ErrPrecondition, "", "run next",
		"every stage is already approved", nil)
}

func (p *Pipeline) checkGates(ctx context.Context, outputID string, st stage.Stage) error {
	gates, err := p.store.ListGates(ctx, outputID)
	if err != nil {
		return err
	}
	byStage := make(map[stage.Stage]*store.StageGate, len(gates))
	for _, gate := range gates {
		byStage[gate.Stage] = gate
	}
	current, ok := byStage[st]
	if !ok {
		return services.Wrap(services.ErrNotFound, string(st), "run stage",
			fmt.Sprintf("output %s has no gate for stage", outputID), nil)
	}
	if current.Status == stage.GateApproved {
		return services.Wrap(services.ErrPrecondition, string(st), "run stage",
			"stage is already approved; reject it first to regenerate", nil)
	}
	for _, earlier := range stage.Before(st) {
		gate, ok := byStage[earlier]
		if !ok || gate.Status != stage.GateApproved {
			return services.Wrap(services.ErrPrecondition, string(st), "run stage",
				fmt.Sprintf("stage %s is not approved yet", earlier), nil)
		}
	}
	return nil
}

func (p *Pipeline) execute(ctx context.Context, st stage.Stage, output *store.Output) error {
	switch st {
	case stage.Outline:
		return p.runOutline(ctx, output)
	case stage.Writer:
		return p.runWriter(ctx, output)
	case stage.Script:
		return p.runScript(ctx, output)
	case stage.QualityReview:
		return p.runQualityReview(ctx, output)
	case stage.Images:
		return p.runImages(ctx, output)
	case stage.BackgroundMusic:
		return p.runBackgroundMusic(ctx, output)
	case stage.SoundEffects:
		return p.runSoundEffects(ctx, output)
	case stage.NarrationAudio:
		return p.runNarrationAudio(ctx, output)
	case stage.MusicEvents:
		return p.runMusicEvents(ctx, output)
	case stage.Motion:
		return p.runMotion(ctx, output)
	case stage.Render:
		return p.runRender(ctx, output)
	default:
		return services.Wrap(services.ErrValidation, string(st), "run stage",
			"unknown stage", nil)
	}
}
