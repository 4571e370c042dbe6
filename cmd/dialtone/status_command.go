package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dialtone/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, storage, and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			for _, result := range checks {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if !preflight.Passed(checks) {
				fmt.Fprintln(out, renderStatusLine("Preflight", statusError, "one or more checks failed", colorize))
			}

			for _, line := range renderSectionHeader("Catalog", colorize) {
				fmt.Fprintln(out, line)
			}

			daemonKind, daemonMsg := statusWarn, "not running"
			if ctx.daemonRunning() {
				daemonKind, daemonMsg = statusOK, "running"
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", daemonKind, daemonMsg, colorize))

			storageKind, storageMsg := statusOK, cfg.Paths.ContentDir
			if !svc.Store().Available() {
				storageKind, storageMsg = statusWarn, "degraded (memory only)"
			}
			fmt.Fprintln(out, renderStatusLine("Storage", storageKind, storageMsg, colorize))

			meta := svc.Syncer().Metadata()
			syncKind := statusOK
			if meta.LastSyncTimeMs == 0 {
				syncKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Last sync", syncKind, formatEpochMs(meta.LastSyncTimeMs), colorize))
			if meta.SyncToken != "" {
				fmt.Fprintln(out, renderStatusLine("Sync token", statusInfo, meta.SyncToken, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Sync state", statusInfo, displayTitle(string(svc.Syncer().State())), colorize))
			fmt.Fprintln(out, renderStatusLine("Registered keys", statusInfo, fmt.Sprintf("%d", svc.Keys().Len()), colorize))
			fmt.Fprintln(out, renderStatusLine("Playlists", statusInfo, fmt.Sprintf("%d", len(svc.Playlists().Names())), colorize))

			queueKind, queueMsg := statusOK, "empty"
			if remaining := svc.Queue().Remaining(); remaining > 0 {
				queueKind = statusInfo
				queueMsg = fmt.Sprintf("%d pending", remaining)
			}
			fmt.Fprintln(out, renderStatusLine("Download queue", queueKind, queueMsg, colorize))

			return nil
		},
	}
}
