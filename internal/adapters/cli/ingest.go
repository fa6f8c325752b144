package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func (a *app) ingestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Upload and index reference documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(cmd, func(ctx context.Context, svc Services) error {
				docs, err := ingestFiles(ctx, svc.Documents, args)
				if err != nil {
					return err
				}
				if a.json {
					return printJSON(cmd, docs)
				}
				for _, d := range docs {
					state := "indexed"
					if !d.Indexed {
						state = "not indexed: " + d.Error
					}
					cmd.Printf("%s  %s  %d chunks  %s\n", d.ID, d.Filename, len(d.Chunks), state)
				}
				return nil
			})
		},
	}
}
