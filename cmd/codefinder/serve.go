package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/pavanjava/semantic-code-finder/internal/http"
	"github.com/pavanjava/semantic-code-finder/internal/mcp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host  string
		port  int
		roots []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve ingestion and search over HTTP:

  GET  /health            store connectivity
  GET  /metrics           Prometheus metrics
  GET  /api/v1/languages  supported languages
  POST /api/v1/ingest     index a directory
  POST /api/v1/search     search a collection`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := httpapi.NewServer(a.pipeline, a.storeHealth, a.logger.Named("http"), &httpapi.Config{
				Host:        cfg.Server.Host,
				Port:        cfg.Server.Port,
				Collection:  cfg.Ingest.Collection,
				Language:    cfg.Ingest.Language,
				ChunkSize:   cfg.Ingest.ChunkSize,
				Limit:       cfg.Search.Limit,
				IngestRoots: roots,
				Version:     version,
			})
			if err != nil {
				return fmt.Errorf("failed to create http server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			a.logger.Info("server shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host")
	cmd.Flags().IntVar(&port, "port", 0, "listen port")
	cmd.Flags().StringSliceVar(&roots, "ingest-root", nil, "only allow POST /api/v1/ingest beneath these directories")
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index_codebase and semantic_search tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := mcp.NewServer(&mcp.Config{
				Version:      version,
				Logger:       a.logger.Named("mcp"),
				Collection:   cfg.Ingest.Collection,
				Language:     cfg.Ingest.Language,
				ChunkSize:    cfg.Ingest.ChunkSize,
				Limit:        cfg.Search.Limit,
				PreviewLines: cfg.Search.PreviewLines,
			}, a.pipeline)
			if err != nil {
				return fmt.Errorf("failed to create mcp server: %w", err)
			}

			err = srv.Run(cmd.Context())
			if err != nil && cmd.Context().Err() != nil {
				a.logger.Info("mcp server stopped", zap.Error(cmd.Context().Err()))
				return nil
			}
			return err
		},
	}
}
