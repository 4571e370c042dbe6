package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the content catalog",
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
			syncer := svc.Syncer()

			if force {
				if err := syncer.Refresh(cmd.Context()); err != nil {
					return fmt.Errorf("refresh catalog: %w", err)
				}
			} else if err := syncer.CheckOnce(cmd.Context()); err != nil {
				return fmt.Errorf("check catalog: %w", err)
			}

			meta := syncer.Metadata()
			fmt.Fprintf(out, "Catalog synced at %s (token %s)\n", formatEpochMs(meta.LastSyncTimeMs), meta.SyncToken)
			fmt.Fprintf(out, "Registered keys: %d\n", svc.Keys().Len())

			queue := svc.Queue()
			if remaining := queue.Remaining(); remaining > 0 {
				fmt.Fprintf(out, "Pending downloads: %d\n", remaining)
				for {
					result := queue.Tick(cmd.Context())
					if result.Job == nil {
						break
					}
					if result.Err != nil {
						fmt.Fprintf(out, "  %s: %v\n", result.Job.URL, result.Err)
					} else {
						fmt.Fprintf(out, "  %s -> %s (%s)\n", result.Job.URL, result.Job.LocalPath, formatBytes(result.Bytes))
					}
					if queue.IsEmpty() {
						break
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Refresh even when the cached catalog is still valid")
	return cmd
}
