package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <output> [stage]",
		Short: "Execute the next stage, or a named stage, for an output",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error {
				output, err := resolveOutput(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				return ctx.withRunLock(cfg, func() error {
					var executed stage.Stage
					if len(args) == 2 {
						target, err := parseStageArg(args[1])
						if err != nil {
							return err
						}
						executed = target
						if err := p.Run(cmd.Context(), output.ID, target); err != nil {
							return err
						}
					} else {
						target, err := p.RunNext(cmd.Context(), output.ID)
						if err != nil {
							return err
						}
						executed = target
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Stage %s finished; review it with: reelsmith show %s\n",
						executed, shortID(output.ID))
					fmt.Fprintf(cmd.OutOrStdout(), "Approve with: reelsmith approve %s %s\n",
						shortID(output.ID), executed)
					return nil
				})
			})
		},
	}
	return cmd
}
