package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/store"
)

func newCostsCommand(ctx *commandContext) *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "costs <output>",
		Short: "Show an output's spend by resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				output, err := resolveOutput(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}

				totals, err := st.CostTotalsByResource(cmd.Context(), output.ID)
				if err != nil {
					return err
				}
				if len(totals) == 0 {
					fmt.Fprintln(out, "No spend recorded yet.")
					return nil
				}
				resources := make([]string, 0, len(totals))
				for resource := range totals {
					resources = append(resources, resource)
				}
				sort.Strings(resources)

				rows := make([][]string, 0, len(resources))
				var total float64
				for _, resource := range resources {
					rows = append(rows, []string{resource, fmt.Sprintf("$%.4f", totals[resource])})
					total += totals[resource]
				}
				rows = append(rows, []string{"total", fmt.Sprintf("$%.4f", total)})
				fmt.Fprintln(out, renderTable(
					[]string{"Resource", "Spend"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))

				if detailed {
					entries, err := st.ListCostEntries(cmd.Context(), output.ID)
					if err != nil {
						return err
					}
					detailRows := make([][]string, 0, len(entries))
					for _, entry := range entries {
						detailRows = append(detailRows, []string{
							formatTime(&entry.CreatedAt),
							entry.Resource,
							entry.Provider,
							entry.Model,
							fmt.Sprintf("%.2f", entry.Units),
							fmt.Sprintf("$%.4f", entry.AmountUSD),
						})
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(
						[]string{"When", "Resource", "Provider", "Model", "Units", "Amount"},
						detailRows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&detailed, "entries", false, "Show every ledger entry")
	return cmd
}
