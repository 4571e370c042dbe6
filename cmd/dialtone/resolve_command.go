package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dialtone/internal/registry"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <key>",
		Short: "Resolve an audio key to its playable source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			key := args[0]
			playable, ok := svc.ResolvePlayable(key)
			if !ok {
				return fmt.Errorf("unknown audio key %q", key)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:     %s\n", playable.AudioKey)
			fmt.Fprintf(out, "Variant: %s\n", playable.Variant)
			switch playable.Variant {
			case registry.VariantFile:
				fmt.Fprintf(out, "Path:    %s\n", playable.LocalPath)
			case registry.VariantStream:
				fmt.Fprintf(out, "URL:     %s\n", playable.StreamingURL)
			case registry.VariantGenerator:
				fmt.Fprintln(out, "Source:  in-process generator")
			}
			if playable.Variant == registry.VariantStream && svc.Queue().Remaining() > 0 {
				fmt.Fprintln(out, "Note:    local copy is queued for download")
			}
			return nil
		},
	}
}
