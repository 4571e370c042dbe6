package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [prefix]",
		Short: "List registered audio keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			prefix := ""
			if len(args) == 1 {
				prefix = strings.TrimSpace(args[0])
			}

			keys := svc.Keys()
			rows := make([][]string, 0, keys.Len())
			for _, key := range keys.Keys() {
				if prefix != "" && !strings.HasPrefix(key, prefix) {
					continue
				}
				entry, ok := keys.Lookup(key)
				if !ok {
					continue
				}
				location := entry.LocalPath
				if location == "" {
					location = entry.StreamingURL
				}
				cached := entry.LocalPath != "" && svc.Store().Exists(entry.LocalPath)
				rows = append(rows, []string{
					key,
					string(keys.KeyType(key)),
					yesNo(cached),
					truncate(location, 60),
				})
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				if prefix != "" {
					fmt.Fprintf(out, "No keys match prefix %q\n", prefix)
				} else {
					fmt.Fprintln(out, "No keys registered; run `dialtone sync` first")
				}
				return nil
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Key", "Variant", "Cached", "Location"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
