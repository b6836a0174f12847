package main

import (
	"fmt"

	"github.com/siherrmann/loregraph"
	"github.com/spf13/cobra"
)

func newReindexCmd(a *app) *cobra.Command {
	var indexType string

	cmd := &cobra.Command{
		Use:   "reindex [entity-id...]",
		Short: "Recompute entity embeddings",
		Long: `Embeds the name of every given entity, or of every entity when no id is
given, and overwrites its embedding in place. With --index-type the pgvector
index for the embedding dimension is recreated afterwards (postgres only).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := loregraph.ParseIDs(args)
			if err != nil {
				return err
			}
			if indexType != "" {
				a.cfg.Reindex.IndexType = indexType
			}

			g, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer g.Close()

			result, err := g.Reindex(cmd.Context(), ids)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "indexed %d, failed %d\n", result.IndexedCount, result.FailedCount)
			for _, failure := range result.Failures {
				fmt.Fprintf(out, "  %s: %s\n", failure.ID, failure.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&indexType, "index-type", "", "hnsw or ivfflat, overrides reindex.index_type")
	return cmd
}
