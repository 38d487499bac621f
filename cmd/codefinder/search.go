package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavanjava/semantic-code-finder/internal/search"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		collection string
		limit      int
		preview    int
	)

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Find indexed code by meaning",
		Long: `Embed QUERY with the configured provider and print the most similar
chunks of a collection, best first.

Examples:
  codefinder search "Inmemory cache design"
  codefinder search --collection backend --limit 3 retry with backoff`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("collection") {
				cfg.Ingest.Collection = collection
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Search.Limit
			}
			if !cmd.Flags().Changed("preview-lines") {
				preview = cfg.Search.PreviewLines
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			searcher, err := search.New(a.embedder, a.store, cfg.Ingest.Collection, a.logger.Named("search"))
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results, err := searcher.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			return search.Print(cmd.OutOrStdout(), query, results, preview)
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection to search")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results")
	cmd.Flags().IntVar(&preview, "preview-lines", 0, "code lines shown per result (0 shows whole chunks)")
	return cmd
}
