package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				var filter []store.OutputStatus
				if statusFilter != "" {
					parsed, ok := store.ParseOutputStatus(statusFilter)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFilter)
					}
					filter = append(filter, parsed)
				}
				outputs, err := st.ListOutputs(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				if len(outputs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No outputs.")
					return nil
				}
				rows := make([][]string, 0, len(outputs))
				for _, output := range outputs {
					next := "-"
					gates, err := st.ListGates(cmd.Context(), output.ID)
					if err == nil {
						for _, gate := range gates {
							if gate.Status != stage.GateApproved {
								next = string(gate.Stage)
								break
							}
						}
					}
					rows = append(rows, []string{
						shortID(output.ID),
						output.Title,
						string(output.Status),
						next,
						strconv.Itoa(output.TargetSeconds) + "s",
						formatTime(&output.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Next Stage", "Target", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (draft, in_progress, completed, failed, cancelled)")
	return cmd
}
