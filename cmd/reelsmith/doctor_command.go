package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/preflight"
)

func newDoctorCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, binaries, and provider configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, "Environment")
			failures := 0
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				if !result.Passed {
					failures++
				}
				fmt.Fprintln(out, checkLine(result, colorize))
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Providers")
			for _, result := range preflight.CheckProvidersFromConfig(cfg) {
				if !result.Passed {
					failures++
				}
				fmt.Fprintln(out, checkLine(result, colorize))
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "System dependencies")
			for _, status := range preflight.CheckSystemDeps(cfg) {
				result := preflight.Result{
					Name:   status.Name,
					Passed: status.Available,
					Detail: status.Command,
				}
				if !status.Available {
					result.Detail = status.Detail
					failures++
				}
				fmt.Fprintln(out, checkLine(result, colorize))
			}

			fmt.Fprintln(out)
			if failures > 0 {
				fmt.Fprintf(out, "%d check(s) failed.\n", failures)
				return nil
			}
			fmt.Fprintln(out, "All checks passed.")
			return nil
		},
	}
	return cmd
}

const checkLabelWidth = 22

func checkLine(result preflight.Result, colorize bool) string {
	marker := "[OK]"
	color := ansiGreen
	if !result.Passed {
		marker = "[FAIL]"
		color = ansiRed
	}
	text := marker
	if strings.TrimSpace(result.Detail) != "" {
		text = fmt.Sprintf("%s %s", marker, result.Detail)
	}
	line := fmt.Sprintf("  %-*s %s", checkLabelWidth, result.Name+":", text)
	if colorize {
		return color + line + ansiReset
	}
	return line
}
