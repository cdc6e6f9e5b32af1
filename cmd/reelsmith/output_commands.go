package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/store"
)

func newVoiceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voice <output> <voice-id>",
		Short: "Change the narration voice and refit narration",
		Long: "Changes the output's voice, discards every fitted narration clip, and " +
			"reopens the pipeline from the narration stage. Approved script, images, " +
			"and music stay in place until the cascade reaches them.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLocalPipeline(func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error {
				output, err := resolveOutput(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				if err := p.ChangeVoice(cmd.Context(), output.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Voice changed to %q. Refit narration with: reelsmith run %s narration_audio\n",
					args[1], shortID(output.ID))
				return nil
			})
		},
	}
}

func newCorrectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "correct <output>",
		Short: "Enter correction mode: reopen images, motion, and render",
		Long: "Reopens the visual stages of an approved output for targeted redos " +
			"while the fitted narration, music, and sound effects keep their approvals.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLocalPipeline(func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error {
				output, err := resolveOutput(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				if err := p.EnterCorrection(cmd.Context(), output.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Output %s is in correction mode. Redo scenes, then: reelsmith run %s images\n",
					shortID(output.ID), shortID(output.ID))
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset <output>",
		Short: "Reset an output to draft with every gate not_started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("reset discards all approvals; pass --yes to confirm")
			}
			return ctx.withLocalPipeline(func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error {
				output, err := resolveOutput(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				if err := p.Reset(cmd.Context(), output.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Output %s reset to draft.\n", shortID(output.ID))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm the reset")
	return cmd
}
