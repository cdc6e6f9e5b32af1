package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/store"
)

func newNewCommand(ctx *commandContext) *cobra.Command {
	var (
		brief       string
		seconds     int
		aspectRatio string
		voice       string
		wpm         int
		lighting    string
		atmosphere  string
		composition string
		styleBase   string
	)

	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Create a new output in draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("title must not be empty")
			}
			if strings.TrimSpace(brief) == "" {
				return fmt.Errorf("--brief is required")
			}
			if seconds <= 0 {
				return fmt.Errorf("--seconds must be positive")
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				output := &store.Output{
					Title:          title,
					Brief:          brief,
					AspectRatio:    aspectRatio,
					TargetSeconds:  seconds,
					Voice:          voice,
					WordsPerMinute: wpm,
					Style: store.Style{
						Lighting:    lighting,
						Atmosphere:  atmosphere,
						Composition: composition,
						Base:        styleBase,
					},
				}
				if output.WordsPerMinute <= 0 {
					output.WordsPerMinute = cfg.Narration.WordsPerMinute
				}
				if err := st.CreateOutput(cmd.Context(), output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created output %s (%s)\n", output.ID, output.Title)
				fmt.Fprintf(cmd.OutOrStdout(), "Run the first stage with: reelsmith run %s\n", output.ID[:8])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&brief, "brief", "b", "", "What the video is about (required)")
	cmd.Flags().IntVarP(&seconds, "seconds", "s", 30, "Target duration in seconds")
	cmd.Flags().StringVar(&aspectRatio, "aspect", "9:16", "Aspect ratio (9:16, 16:9, 1:1, 4:5)")
	cmd.Flags().StringVar(&voice, "voice", "", "Narration voice identifier")
	cmd.Flags().IntVar(&wpm, "wpm", 0, "Assumed words per minute at unit speech rate")
	cmd.Flags().StringVar(&lighting, "style-lighting", "", "Style anchor: lighting")
	cmd.Flags().StringVar(&atmosphere, "style-atmosphere", "", "Style anchor: atmosphere")
	cmd.Flags().StringVar(&composition, "style-composition", "", "Style anchor: composition")
	cmd.Flags().StringVar(&styleBase, "style", "", "Style anchor: base description")

	return cmd
}
