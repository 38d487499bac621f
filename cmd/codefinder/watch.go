package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/language"
	"github.com/pavanjava/semantic-code-finder/internal/watcher"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	flags := &ingestFlags{}
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch DIRECTORY",
		Short: "Re-ingest DIRECTORY whenever its sources change",
		Long: `Ingest DIRECTORY once, then watch it and re-ingest after each burst of
changes to files of the selected language settles.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg.Ingest)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ext := language.Resolve(cfg.Ingest.Language)
			if cfg.Ingest.StrictLanguage {
				if ext, err = language.MustResolve(cfg.Ingest.Language); err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req := a.ingestRequest(args[0])
			w, err := watcher.New(watcher.Config{
				Root:           args[0],
				Extension:      ext,
				ExcludeDirs:    cfg.Ingest.ExcludeDirs,
				IgnorePatterns: a.pipeline.IgnorePatterns(args[0]),
				Debounce:       cfg.Watch.Debounce.Duration(),
				Initial:        !skipInitial,
			}, func(ctx context.Context) error {
				result, err := a.pipeline.Ingest(ctx, req)
				if err != nil {
					return err
				}
				a.logger.Info("collection refreshed",
					zap.String("collection", result.Collection),
					zap.Int("files", result.FilesCollected),
					zap.Int("chunks_written", result.ChunksWritten))
				return nil
			}, a.logger.Named("watch"))
			if err != nil {
				return err
			}
			return w.Run(cmd.Context())
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first change before ingesting")
	return cmd
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages and their file extensions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range language.Supported() {
				ext, _ := language.Lookup(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", name, ext)
			}
		},
	}
}
