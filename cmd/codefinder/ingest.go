package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/config"
	"github.com/pavanjava/semantic-code-finder/internal/ingest"
	"github.com/pavanjava/semantic-code-finder/internal/sanitize"
	"github.com/pavanjava/semantic-code-finder/internal/search"
)

// ingestFlags are the flags shared by ingest and watch.
type ingestFlags struct {
	language        string
	collection      string
	chunkSize       int
	dryRun          bool
	debug           bool
	exclude         []string
	continueOnError bool
	strictLanguage  bool
	workers         int
	batchSize       int
	writesPerSecond float64
}

func (f *ingestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.language, "language", "l", "", "language to collect, e.g. python, go, typescript")
	fs.StringVarP(&f.collection, "collection", "c", "", "collection to write chunks to")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "maximum tokens per chunk")
	fs.BoolVar(&f.dryRun, "dry-run", false, "collect and chunk without writing to the store")
	fs.BoolVar(&f.debug, "debug", false, "log every chunk before it is written")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "directory names to skip (replaces the defaults)")
	fs.BoolVar(&f.continueOnError, "continue-on-error", false, "record failed batches and keep writing")
	fs.BoolVar(&f.strictLanguage, "strict-language", false, "fail on an unknown language instead of warning")
	fs.IntVar(&f.workers, "workers", 0, "concurrent embed and upsert workers")
	fs.IntVar(&f.batchSize, "batch-size", 0, "chunks per embed and upsert call")
	fs.Float64Var(&f.writesPerSecond, "writes-per-second", 0, "pace batch writes (0 disables pacing)")
}

// apply copies flags the user set over the ingest config.
func (f *ingestFlags) apply(cmd *cobra.Command, c *config.IngestConfig) {
	fs := cmd.Flags()
	if fs.Changed("language") {
		c.Language = f.language
	}
	if fs.Changed("collection") {
		c.Collection = f.collection
	}
	if fs.Changed("chunk-size") {
		c.ChunkSize = f.chunkSize
	}
	if fs.Changed("dry-run") {
		c.ShouldIngest = !f.dryRun
	}
	if fs.Changed("debug") {
		c.Debug = f.debug
	}
	if fs.Changed("exclude") {
		c.ExcludeDirs = f.exclude
	}
	if fs.Changed("continue-on-error") {
		c.ContinueOnError = f.continueOnError
	}
	if fs.Changed("strict-language") {
		c.StrictLanguage = f.strictLanguage
	}
	if fs.Changed("workers") {
		c.Workers = f.workers
	}
	if fs.Changed("batch-size") {
		c.BatchSize = f.batchSize
	}
	if fs.Changed("writes-per-second") {
		c.WritesPerSecond = f.writesPerSecond
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	flags := &ingestFlags{}
	var (
		queries       []string
		limit         int
		collectionDir bool
	)

	cmd := &cobra.Command{
		Use:   "ingest DIRECTORY",
		Short: "Index a source tree into the vector store",
		Long: `Collect the files of one language under DIRECTORY, split them into
token-bounded chunks, embed them and upsert them into a collection.
Re-ingesting a tree overwrites its chunks in place.

Examples:
  # Index python sources with the defaults
  codefinder ingest ./src

  # Preview the chunking of a Go tree without touching the store
  codefinder ingest ./ --language go --dry-run

  # Index, then ask a question against the fresh collection
  codefinder ingest ./src --query "Inmemory cache design"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg.Ingest)
			if collectionDir && !cmd.Flags().Changed("collection") {
				cfg.Ingest.Collection = sanitize.CollectionForDir(args[0])
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.pipeline.Ingest(cmd.Context(), a.ingestRequest(args[0]))
			if result != nil {
				printResult(cmd.OutOrStdout(), result)
			}
			if err != nil {
				return err
			}

			if len(queries) == 0 || result.DryRun {
				return nil
			}
			if limit <= 0 {
				limit = cfg.Search.Limit
			}
			for _, q := range queries {
				hits, err := result.Handle.Search(cmd.Context(), q, limit)
				if err != nil {
					return fmt.Errorf("search %q: %w", q, err)
				}
				if err := search.Print(cmd.OutOrStdout(), q, hits, cfg.Search.PreviewLines); err != nil {
					return err
				}
			}
			a.logger.Debug("ingest command completed", zap.String("run_id", result.RunID))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVarP(&queries, "query", "q", nil, "search the collection after ingesting (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "results per --query")
	cmd.Flags().BoolVar(&collectionDir, "collection-from-dir", false, "name the collection after DIRECTORY, e.g. ./payments-api -> payments-api_chunks")
	return cmd
}

// printResult writes a run summary.
func printResult(w io.Writer, r *ingest.Result) {
	mode := "ingested"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, mode)
	fmt.Fprintf(w, "Collection:      %s\n", r.Collection)
	if r.Branch != "" || r.Commit != "" {
		fmt.Fprintf(w, "Revision:        %s@%s\n", r.Branch, shortCommit(r.Commit))
	}
	fmt.Fprintf(w, "Files collected: %d (skipped %d)\n", r.FilesCollected, r.FilesSkipped)
	fmt.Fprintf(w, "Chunks:          %d produced, %d written\n", r.ChunksProduced, r.ChunksWritten)
	if r.SecretsRedacted > 0 {
		fmt.Fprintf(w, "Secrets:         %d redacted\n", r.SecretsRedacted)
	}
	for _, t := range r.Timings {
		fmt.Fprintf(w, "  %-8s %s\n", t.Phase, t.Elapsed.Round(time.Millisecond))
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  failed: %s chunks %d-%d: %s\n", f.Path, f.FirstChunk, f.FirstChunk+f.Chunks-1, f.Err)
	}
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
