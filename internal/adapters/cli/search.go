package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

const defaultSearchK = 5

func (a *app) searchCommand() *cobra.Command {
	var (
		k      int
		docs   []string
		docIDs []string
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Run the cascading retriever over indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(args[0])
			if query == "" {
				return errors.New("query must not be empty")
			}
			return a.with(cmd, func(ctx context.Context, svc Services) error {
				ingested, err := ingestFiles(ctx, svc.Documents, docs)
				if err != nil {
					return err
				}
				filter := domain.SearchFilter{DocumentIDs: append(documentIDs(ingested), docIDs...)}
				outcome, err := svc.Retriever.Search(ctx, query, k, filter)
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}
				if a.json {
					return printJSON(cmd, outcome)
				}
				if len(outcome.Results) == 0 {
					cmd.Println("No results found.")
					return nil
				}
				cmd.Printf("strategy: %s\n", outcome.Strategy)
				for i, r := range outcome.Results {
					cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Metadata.Filename, r.Score)
					cmd.Printf("      %s\n", truncate(r.Text, 160))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", defaultSearchK, "number of results")
	cmd.Flags().StringArrayVarP(&docs, "doc", "d", nil, "document to ingest before searching (repeatable)")
	cmd.Flags().StringArrayVar(&docIDs, "doc-id", nil, "restrict to an indexed document id (repeatable)")
	return cmd
}
