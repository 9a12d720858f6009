package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sublingo/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(listStatuses)
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.FileName,
						colorizeStatus(job.Status, colorize),
						job.DetectedLanguage,
						strings.Join(job.Targets, ","),
						queueListDetail(job),
					})
				}
				table := renderTable(
					[]string{"ID", "File", "Status", "Language", "Targets", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Only show jobs with these statuses")
	return cmd
}

func queueListDetail(job ipc.JobView) string {
	if job.ErrorMessage != "" {
		return job.ErrorMessage
	}
	if job.ProgressMessage != "" {
		return job.ProgressMessage
	}
	return job.ProgressStage
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch scope {
			case "all", "completed", "failed":
			default:
				return fmt.Errorf("unknown scope %q (expected all, completed, or failed)", scope)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear(scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", resp.Removed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "all", "Which jobs to remove: all, completed, or failed")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed jobs back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRetry(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d job(s)\n", resp.Updated)
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueCancel(id)
				if err != nil {
					return err
				}
				if !resp.Requested {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %d is already finished or unknown\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %d\n", id)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show aggregate queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueHealth()
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Total", strconv.Itoa(resp.Counts.Total)},
					{"Pending", strconv.Itoa(resp.Counts.Pending)},
					{"Processing", strconv.Itoa(resp.Counts.Processing)},
					{"Failed", strconv.Itoa(resp.Counts.Failed)},
					{"Completed", strconv.Itoa(resp.Counts.Completed)},
				}
				table := renderTable([]string{"Bucket", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}
