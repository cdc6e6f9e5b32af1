package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"reelsmith/internal/services"
	"reelsmith/internal/services/scriptgen"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

func (p *Pipeline) record(outputID string, entries ...services.Cost) {
	for _, cost := range entries {
		if cost.Provider == "" && cost.Units == 0 && cost.AmountUSD == 0 {
			continue
		}
		p.ledger.Record(outputID, cost)
	}
}

func (p *Pipeline) runOutline(ctx context.Context, output *store.Output) error {
	outline, cost, err := p.script.Outline(ctx, output.Title, output.Brief, output.TargetSeconds)
	p.record(output.ID, cost)
	if err != nil {
		return err
	}
	if strings.TrimSpace(outline) == "" {
		return services.Wrap(services.ErrValidation, string(stage.Outline), "generate outline",
			"provider returned an empty outline", nil)
	}
	output.OutlineText = outline
	return p.store.UpdateOutput(ctx, output)
}

func (p *Pipeline) runWriter(ctx context.Context, output *store.Output) error {
	if strings.TrimSpace(output.OutlineText) == "" {
		return services.Wrap(services.ErrPrecondition, string(stage.Writer), "write draft",
			"output has no outline", nil)
	}
	wordBudget := output.TargetSeconds * output.WordsPerMinute / 60
	draft, cost, err := p.script.Draft(ctx, output.OutlineText, wordBudget)
	p.record(output.ID, cost)
	if err != nil {
		return err
	}
	if strings.TrimSpace(draft) == "" {
		return services.Wrap(services.ErrValidation, string(stage.Writer), "write draft",
			"provider returned an empty draft", nil)
	}
	output.DraftText = draft
	return p.store.UpdateOutput(ctx, output)
}

func (p *Pipeline) runScript(ctx context.Context, output *store.Output) error {
	if strings.TrimSpace(output.DraftText) == "" {
		return services.Wrap(services.ErrPrecondition, string(stage.Script), "break into scenes",
			"output has no draft", nil)
	}
	plans, cost, err := p.script.Scenes(ctx, output.DraftText, output.TargetSeconds)
	p.record(output.ID, cost)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		return services.Wrap(services.ErrValidation, string(stage.Script), "break into scenes",
			"provider returned no scenes", nil)
	}
	scenes := make([]*store.Scene, 0, len(plans))
	for _, plan := range plans {
		if strings.TrimSpace(plan.Narration) == "" {
			return services.Wrap(services.ErrValidation, string(stage.Script), "break into scenes",
				fmt.Sprintf("scene %d has no narration", len(scenes)), nil)
		}
		scenes = append(scenes, &store.Scene{
			OutputID:      output.ID,
			Narration:     plan.Narration,
			VisualDesc:    plan.VisualDesc,
			EndVisualDesc: plan.EndVisualDesc,
			AudioDesc:     plan.AudioDesc,
			Environment:   plan.Environment,
			CharacterRef:  plan.CharacterRef,
		})
	}
	return p.store.ReplaceScenes(ctx, output.ID, scenes)
}

func (p *Pipeline) runQualityReview(ctx context.Context, output *store.Output) error {
	scenes, err := p.store.ListScenes(ctx, output.ID)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrPrecondition, string(stage.QualityReview), "review script",
			"output has no scenes", nil)
	}
	plans := make([]scriptgen.ScenePlan, 0, len(scenes))
	for _, scene := range scenes {
		plans = append(plans, scriptgen.ScenePlan{
			Narration:     scene.Narration,
			VisualDesc:    scene.VisualDesc,
			EndVisualDesc: scene.EndVisualDesc,
			AudioDesc:     scene.AudioDesc,
			Environment:   scene.Environment,
			CharacterRef:  scene.CharacterRef,
		})
	}
	plan, cost, err := p.script.Review(ctx, plans, output.TargetSeconds)
	p.record(output.ID, cost)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode edit plan: %w", err)
	}
	output.EditPlanJSON = string(encoded)
	return p.store.UpdateOutput(ctx, output)
}

func (p *Pipeline) editPlan(output *store.Output) (scriptgen.EditPlan, error) {
	var plan scriptgen.EditPlan
	if strings.TrimSpace(output.EditPlanJSON) == "" {
		return plan, nil
	}
	if err := json.Unmarshal([]byte(output.EditPlanJSON), &plan); err != nil {
		return plan, fmt.Errorf("decode edit plan: %w", err)
	}
	return plan, nil
}
