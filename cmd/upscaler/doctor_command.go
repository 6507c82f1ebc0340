package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"upscaler/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories and free space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			problems := 0

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			depRows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if status.Optional {
						state = "optional"
					} else {
						problems++
					}
				}
				location := status.Command
				if status.Path != "" {
					location = status.Path
				}
				depRows = append(depRows, []string{status.Name, location, state, status.Version, status.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{
				col("Dependency"), wideCol("Path", 40), col("Status"), wideCol("Version", 32), wideCol("Detail", 48),
			}, depRows))

			results := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(results))
			for _, result := range results {
				state := "ok"
				if !result.Passed {
					state = "failed"
					problems++
				}
				checkRows = append(checkRows, []string{result.Name, state, result.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{col("Check"), col("Status"), wideCol("Detail", 72)}, checkRows))

			if problems > 0 {
				return fmt.Errorf("doctor found %d problem(s)", problems)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
