package main

import (
	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	groupUpscale     = "upscale"
	groupMaintenance = "maintenance"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag  string
		verboseFlag bool
	)
	ctx := newCommandContext(&configFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:   "upscaler",
		Short: "Frame-by-frame video upscaling with bounded disk usage",
		Long: `upscaler extracts frames from a video, runs each through an external
image upscaling engine and re-encodes the result while deleting frames as
soon as they are consumed, so disk usage stays bounded by the look-ahead
window instead of the length of the video.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupUpscale, Title: "Upscaling:"},
		&cobra.Group{ID: groupMaintenance, Title: "History and maintenance:"},
	)
	for _, cmd := range []*cobra.Command{newRunCommand(ctx), newSplitCommand(ctx)} {
		cmd.GroupID = groupUpscale
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{
		newJobsCommand(ctx),
		newLogsCommand(ctx),
		newDoctorCommand(ctx),
		newConfigCommand(ctx),
	} {
		cmd.GroupID = groupMaintenance
		rootCmd.AddCommand(cmd)
	}
	return rootCmd
}
