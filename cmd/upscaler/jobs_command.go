package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"upscaler/internal/jobstore"
	"upscaler/internal/partition"
)

var stateTitle = cases.Title(language.English)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent upscaling jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobstore.Store) error {
				jobs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				fmt.Fprintln(out, renderJobsTable(jobs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of jobs to show (0 for all)")

	cmd.AddCommand(newJobsShowCommand(ctx))
	cmd.AddCommand(newJobsClearCommand(ctx))
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job with its partitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobstore.Store) error {
				job, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				printJob(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished and failed jobs from history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobstore.Store) error {
				removed, err := store.ClearFinished(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d jobs\n", removed)
				return nil
			})
		},
	}
}

func renderJobsTable(jobs []jobstore.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.Name,
			formatState(job.State),
			strconv.Itoa(job.Partitions),
			strconv.Itoa(job.FrameCount),
			formatElapsed(job.Elapsed()),
			humanize.Time(job.CreatedAt),
		})
	}
	return renderTable([]column{
		col("ID"), wideCol("Name", 40), col("State"),
		numCol("Parts"), numCol("Frames"), numCol("Elapsed"), col("Created"),
	}, rows)
}

func printJob(out io.Writer, job jobstore.Job) {
	fmt.Fprintf(out, "Job:     %s\n", job.ID)
	fmt.Fprintf(out, "Name:    %s\n", job.Name)
	fmt.Fprintf(out, "Input:   %s\n", job.InputPath)
	fmt.Fprintf(out, "Output:  %s\n", job.OutputPath)
	if job.Engine != "" {
		fmt.Fprintf(out, "Engine:  %s\n", job.Engine)
	}
	fmt.Fprintf(out, "State:   %s\n", formatState(job.State))
	fmt.Fprintf(out, "Created: %s (%s)\n", job.CreatedAt.Local().Format("2006-01-02 15:04"), humanize.Time(job.CreatedAt))
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:   %s (%s)\n", job.ErrorMessage, job.FailureKind)
	}
	if len(job.PartitionRecords) == 0 {
		return
	}
	rows := make([][]string, 0, len(job.PartitionRecords))
	for _, p := range job.PartitionRecords {
		rows = append(rows, []string{
			strconv.Itoa(p.Index),
			formatState(p.State),
			strconv.Itoa(p.FrameCount),
			p.InputPath,
			p.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		numCol("#"), col("State"), numCol("Frames"), wideCol("Segment", 48), wideCol("Error", 48),
	}, rows))
}

func formatState(state partition.State) string {
	return stateTitle.String(string(state))
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
