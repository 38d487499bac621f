package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/chunker"
	"github.com/pavanjava/semantic-code-finder/internal/config"
	"github.com/pavanjava/semantic-code-finder/internal/embeddings"
	"github.com/pavanjava/semantic-code-finder/internal/ingest"
	"github.com/pavanjava/semantic-code-finder/internal/logging"
	"github.com/pavanjava/semantic-code-finder/internal/secrets"
	"github.com/pavanjava/semantic-code-finder/internal/telemetry"
	"github.com/pavanjava/semantic-code-finder/internal/vectorstore"
)

// app holds the dependencies shared by the commands.
type app struct {
	cfg       *config.Config
	log       *logging.Logger
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	embedder  embeddings.Provider
	store     vectorstore.Store
	pipeline  *ingest.Pipeline
}

// newApp initializes the dependencies in order:
//  1. Telemetry (no-op unless enabled)
//  2. Logger, bridged to OTEL when configured
//  3. Embedding provider, whose dimension sizes new collections
//  4. Vector store
//  5. Ingestion pipeline
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	ready := false
	defer func() {
		if !ready {
			_ = a.Close()
		}
	}()

	var err error
	a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	// stdout carries search reports and MCP traffic.
	logCfg.Output.Stdout = false
	logCfg.Output.Stderr = true
	a.log, err = logging.NewLogger(logCfg, a.telemetry.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = a.log.Underlying()

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		CacheDir: cfg.Embeddings.CacheDir,
		Timeout:  cfg.Embeddings.Timeout.Duration(),
		Logger:   a.logger.Named("embeddings"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embeddings: %w", err)
	}
	a.embedder = embedder
	if dim := a.embedder.Dimension(); dim > 0 && dim != cfg.Qdrant.VectorSize {
		a.logger.Info("vector size follows the embedding model",
			zap.String("model", cfg.Embeddings.Model),
			zap.Int("configured", cfg.Qdrant.VectorSize),
			zap.Int("model_dimension", dim))
		cfg.Qdrant.VectorSize = dim
	}

	store, err := vectorstore.NewStore(cfg, a.logger.Named("vectorstore"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	a.store = store

	tokenizer, err := chunker.NewTokenizer(cfg.Ingest.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	deps := ingest.Deps{
		Chunkers: ingest.RecursiveChunkers(tokenizer, a.logger.Named("chunker")),
		Embedder: a.embedder,
		Store:    a.store,
		Logger:   a.logger.Named("ingest"),
	}
	if cfg.Secrets.Enabled {
		deps.Scrubbers = secrets.ForProject(cfg.Secrets)
	}
	a.pipeline, err = ingest.New(deps, ingest.OptionsFromConfig(cfg.Ingest, cfg.Qdrant.VectorSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.logger.Debug("dependencies initialized",
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("tokenizer", cfg.Ingest.Tokenizer),
		zap.Bool("secrets", cfg.Secrets.Enabled),
		zap.Bool("telemetry", a.telemetry.IsEnabled()))
	ready = true
	return a, nil
}

// storeHealth probes the vector store with a cheap read.
func (a *app) storeHealth(ctx context.Context) error {
	_, err := a.store.CollectionExists(ctx, a.cfg.Ingest.Collection)
	return err
}

// ingestRequest builds a request from the ingest defaults.
func (a *app) ingestRequest(dir string) ingest.Request {
	c := a.cfg.Ingest
	return ingest.Request{
		Directory:       dir,
		Language:        c.Language,
		Collection:      c.Collection,
		ChunkSize:       c.ChunkSize,
		ShouldIngest:    c.ShouldIngest,
		Debug:           c.Debug,
		ExcludeDirs:     c.ExcludeDirs,
		ContinueOnError: c.ContinueOnError,
		StrictLanguage:  c.StrictLanguage,
	}
}

// Close releases everything newApp acquired, newest first.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vector store close: %w", err))
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("embeddings close: %w", err))
		}
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}
