package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

func newApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <output> <stage>",
		Short: "Approve a stage's generated result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLocalPipeline(func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error {
				output, err := resolveOutput(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				target, err := parseStageArg(args[1])
				if err != nil {
					return err
				}
				if err := p.Approve(cmd.Context(), output.ID, target); err != nil {
					return err
				}
				if stage.Final(target) {
					fmt.Fprintf(cmd.OutOrStdout(), "Output %s is complete.\n", shortID(output.ID))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approved %s. Continue with: reelsmith run %s\n",
					target, shortID(output.ID))
				return nil
			})
		},
	}
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "reject <output> <stage>",
		Short: "Reject a stage with feedback; later stages reset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(feedback) == "" {
				return fmt.Errorf("--feedback is required")
			}
			return ctx.withLocalPipeline(func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error {
				output, err := resolveOutput(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				target, err := parseStageArg(args[1])
				if err != nil {
					return err
				}
				if err := p.Reject(cmd.Context(), output.ID, target, feedback); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s; downstream stages reset. Regenerate with: reelsmith run %s %s\n",
					target, shortID(output.ID), target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&feedback, "feedback", "f", "", "Why the result was rejected (required)")
	return cmd
}
