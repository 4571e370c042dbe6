package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the pending download queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			jobs := svc.Queue().Jobs()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "Download queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for i, job := range jobs {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					displayTitle(job.Description),
					string(job.State),
					truncate(job.URL, 50),
					job.LocalPath,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Description", "State", "URL", "Target"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	queueCmd.AddCommand(newQueueDrainCommand(ctx))
	return queueCmd
}

func newQueueDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process every pending download now",
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := ctx.acquireStoreLock()
			if err != nil {
				return err
			}
			defer lock.Unlock()

			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			queue := svc.Queue()
			if queue.IsEmpty() {
				fmt.Fprintln(out, "Download queue is empty")
				return nil
			}

			downloaded, failed := 0, 0
			for !queue.IsEmpty() {
				result := queue.Tick(cmd.Context())
				if result.Job == nil {
					break
				}
				if result.Err != nil {
					failed++
					fmt.Fprintf(out, "failed  %s: %v\n", result.Job.URL, result.Err)
					continue
				}
				downloaded++
				fmt.Fprintf(out, "fetched %s -> %s (%s)\n", result.Job.URL, result.Job.LocalPath, formatBytes(result.Bytes))
			}
			fmt.Fprintf(out, "Drained: %d downloaded, %d failed\n", downloaded, failed)
			return nil
		},
	}
}
