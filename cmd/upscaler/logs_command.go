package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"upscaler/internal/logging"
	"upscaler/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var jobID string
	var level string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display upscaler logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Paths.LogDir == "" {
				return fmt.Errorf("paths.log_dir is not configured; logs are only written to stderr")
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			filter := logs.Filter{JobID: jobID, MinLevel: level}
			out := cmd.OutOrStdout()

			opts := logs.TailOptions{Offset: -1, Limit: lines, Filter: filter}
			if lines <= 0 {
				opts.Offset = 0
			}
			result, err := logs.Tail(path, opts)
			if err != nil {
				return err
			}
			for _, entry := range result.Entries {
				fmt.Fprintln(out, logs.Format(entry))
			}
			if !follow {
				if len(result.Entries) == 0 {
					fmt.Fprintln(out, "No log entries available")
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, result.Offset, filter, func(entry logs.Entry) {
				fmt.Fprintln(out, logs.Format(entry))
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show (0 for all)")
	cmd.Flags().StringVarP(&jobID, "job", "j", "", "Only show entries for this job id (prefix match)")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}
