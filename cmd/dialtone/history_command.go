package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dialtone/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show processed downloads from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			history, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open download ledger: %w", err)
			}
			defer history.Close()

			out := cmd.OutOrStdout()

			if clear {
				removed, err := history.Clear(cmd.Context())
				if err != nil {
					return fmt.Errorf("clear ledger: %w", err)
				}
				fmt.Fprintf(out, "Removed %d ledger records\n", removed)
				return nil
			}

			records, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No downloads recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				detail := rec.Path
				if rec.Error != "" {
					detail = rec.Error
				}
				rows = append(rows, []string{
					rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					rec.Outcome,
					formatBytes(rec.Bytes),
					formatMillis(rec.DurationMs),
					truncate(rec.URL, 45),
					truncate(detail, 45),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "Outcome", "Size", "Took", "URL", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))

			stats, err := history.Stats(cmd.Context())
			if err == nil && len(stats) > 0 {
				fmt.Fprintf(out, "Totals: %d downloaded, %d failed\n", stats["downloaded"], stats["failed"])
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete all ledger records")
	return cmd
}
