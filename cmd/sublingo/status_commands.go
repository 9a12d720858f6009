package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sublingo/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				rows := [][]string{
					{"Running", yesNo(status.Running)},
					{"PID", strconv.Itoa(status.PID)},
					{"Lock file", status.LockPath},
					{"Queue total", strconv.Itoa(status.Queue.Total)},
					{"Pending", strconv.Itoa(status.Queue.Pending)},
					{"Processing", strconv.Itoa(status.Queue.Processing)},
					{"Failed", strconv.Itoa(status.Queue.Failed)},
					{"Completed", strconv.Itoa(status.Queue.Completed)},
				}
				if status.LastError != "" {
					rows = append(rows, []string{"Last error", status.LastError})
				}
				if status.LastJob != nil {
					rows = append(rows, []string{
						"Last job",
						fmt.Sprintf("#%d %s (%s)", status.LastJob.ID, status.LastJob.FileName, status.LastJob.Status),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))

				if len(status.StageHealth) > 0 {
					colorize := shouldColorize(out)
					healthRows := make([][]string, 0, len(status.StageHealth))
					for _, health := range status.StageHealth {
						detail := health.Detail
						if detail == "" && health.Ready {
							detail = "ok"
						}
						healthRows = append(healthRows, []string{health.Name, colorizeReady(health.Ready, colorize), detail})
					}
					fmt.Fprintln(out, renderTable([]string{"Stage", "Ready", "Detail"}, healthRows, []columnAlignment{alignLeft, alignLeft, alignLeft}))
				}
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				}
				return nil
			})
		},
	}
}
