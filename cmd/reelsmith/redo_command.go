package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/store"
)

func newRedoCommand(ctx *commandContext) *cobra.Command {
	redoCmd := &cobra.Command{
		Use:   "redo",
		Short: "Regenerate a single scene's image or motion clip",
	}
	redoCmd.AddCommand(newRedoImageCommand(ctx))
	redoCmd.AddCommand(newRedoMotionCommand(ctx))
	return redoCmd
}

func newRedoImageCommand(ctx *commandContext) *cobra.Command {
	var guidance string

	cmd := &cobra.Command{
		Use:   "image <scene-id>",
		Short: "Regenerate one scene's start frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sceneID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("scene id must be numeric: %w", err)
			}
			return ctx.withPipeline(func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error {
				return ctx.withRunLock(cfg, func() error {
					if err := p.RedoSceneImage(cmd.Context(), sceneID, guidance); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Regenerated image for scene %d.\n", sceneID)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&guidance, "guidance", "g", "", "Extra prompt guidance for the new frame")
	return cmd
}

func newRedoMotionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "motion <scene-id>",
		Short: "Regenerate one scene's motion clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sceneID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("scene id must be numeric: %w", err)
			}
			return ctx.withPipeline(func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error {
				return ctx.withRunLock(cfg, func() error {
					if err := p.RedoSceneMotion(cmd.Context(), sceneID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Regenerated motion for scene %d.\n", sceneID)
					return nil
				})
			})
		},
	}
}
