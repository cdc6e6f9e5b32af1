package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/store"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withScenes bool

	cmd := &cobra.Command{
		Use:     "show <output>",
		Aliases: []string{"status"},
		Short:   "Show one output's gates, scenes, and artifact",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				output, err := resolveOutput(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "%s  %s\n", shortID(output.ID), output.Title)
				fmt.Fprintf(out, "Status: %s", output.Status)
				if output.CorrectionMode {
					fmt.Fprint(out, " (correction mode)")
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Target: %ds at %s, voice %q\n", output.TargetSeconds, output.AspectRatio, output.Voice)
				if output.ErrorMessage != "" {
					fmt.Fprintf(out, "Error: %s\n", output.ErrorMessage)
				}
				fmt.Fprintln(out)

				gates, err := st.ListGates(cmd.Context(), output.ID)
				if err != nil {
					return err
				}
				gateRows := make([][]string, 0, len(gates))
				for _, gate := range gates {
					feedback := gate.Feedback
					if feedback == "" {
						feedback = "-"
					}
					gateRows = append(gateRows, []string{
						gate.Stage.Label(),
						gateStatusLabel(gate.Status, colorize),
						formatTime(gate.ExecutedAt),
						formatTime(gate.ReviewedAt),
						feedback,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Stage", "Status", "Executed", "Reviewed", "Feedback"},
					gateRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))

				if withScenes {
					scenes, err := st.ListScenes(cmd.Context(), output.ID)
					if err == nil && len(scenes) > 0 {
						narr, _ := st.SceneNarrationTracks(cmd.Context(), output.ID)
						sceneRows := make([][]string, 0, len(scenes))
						for _, scene := range scenes {
							duration := "-"
							if track, ok := narr[scene.ID]; ok {
								duration = formatMS(track.DurationMS)
							}
							sceneRows = append(sceneRows, []string{
								strconv.Itoa(scene.Order),
								strconv.FormatInt(scene.ID, 10),
								scene.Environment,
								string(scene.ImageStatus),
								duration,
								truncate(scene.Narration, 60),
							})
						}
						fmt.Fprintln(out)
						fmt.Fprintln(out, renderTable(
							[]string{"#", "Scene ID", "Environment", "Image", "Narration", "Text"},
							sceneRows,
							[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
						))
					}
				}

				if artifact, err := st.GetRenderArtifact(cmd.Context(), output.ID); err == nil {
					fmt.Fprintln(out)
					fmt.Fprintf(out, "Rendered: %s (%d bytes)\n", artifact.Media.Path, artifact.ByteSize)
				}

				if total, err := st.CostTotal(cmd.Context(), output.ID); err == nil && total > 0 {
					fmt.Fprintf(out, "Spend to date: $%.4f\n", total)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withScenes, "scenes", true, "Include the scene table")
	return cmd
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max-1] + "…"
}
