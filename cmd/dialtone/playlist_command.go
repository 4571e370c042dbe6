package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "playlist [key]",
		Short: "Show a playlist, or list all playlist names",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			playlists := svc.Playlists()

			if len(args) == 0 {
				names := playlists.Names()
				if len(names) == 0 {
					fmt.Fprintln(out, "No playlists; run `dialtone sync` first")
					return nil
				}
				for _, name := range names {
					pl, _ := playlists.Get(name)
					fmt.Fprintf(out, "%s (%d nodes)\n", name, len(pl.Nodes))
				}
				return nil
			}

			name := args[0]
			pl, ok := playlists.Get(name)
			if !ok {
				return fmt.Errorf("no playlist for key %q", name)
			}

			rows := make([][]string, 0, len(pl.Nodes))
			for i, node := range pl.Nodes {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					node.AudioKey,
					yesNo(svc.HasKey(node.AudioKey)),
					formatMillis(int64(node.GapMs)),
					formatMillis(int64(node.DurationMs)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Key", "Known", "Gap", "Duration"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}
