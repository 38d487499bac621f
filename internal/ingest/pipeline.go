package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pavanjava/semantic-code-finder/internal/chunker"
	"github.com/pavanjava/semantic-code-finder/internal/collector"
	"github.com/pavanjava/semantic-code-finder/internal/config"
	"github.com/pavanjava/semantic-code-finder/internal/ignore"
	"github.com/pavanjava/semantic-code-finder/internal/language"
	"github.com/pavanjava/semantic-code-finder/internal/logging"
	"github.com/pavanjava/semantic-code-finder/internal/secrets"
	"github.com/pavanjava/semantic-code-finder/internal/vcs"
	"github.com/pavanjava/semantic-code-finder/internal/vectorstore"
)

var tracer = otel.Tracer("github.com/pavanjava/semantic-code-finder/internal/ingest")

// ChunkerFactory returns a Chunker for a token budget.
type ChunkerFactory func(chunkSize int) (chunker.Chunker, error)

// RecursiveChunkers builds RecursiveChunkers sharing one tokenizer.
func RecursiveChunkers(tokenizer chunker.Tokenizer, logger *zap.Logger) ChunkerFactory {
	return func(chunkSize int) (chunker.Chunker, error) {
		return chunker.NewRecursiveChunker(chunkSize, tokenizer, logger)
	}
}

// ScrubberFactory returns the Scrubber for an ingested root.
type ScrubberFactory func(root string) (secrets.Scrubber, error)

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Chunkers ChunkerFactory
	Embedder vectorstore.Embedder
	Store    vectorstore.Store

	// Scrubbers is optional; nil stores chunk text unmodified.
	Scrubbers ScrubberFactory

	Logger *zap.Logger
}

// Options tune a Pipeline.
type Options struct {
	// BatchSize is the number of chunks embedded and upserted per call.
	// Default: 64
	BatchSize int

	// Workers bounds concurrent batch writes. Default: 1
	Workers int

	// WritesPerSecond paces upsert calls; zero disables pacing.
	WritesPerSecond float64

	// ReadWorkers bounds concurrent file reads. Default: 8
	ReadWorkers int

	// MaxFileSize is passed to the collector. Zero selects its default.
	MaxFileSize int64

	// UseIgnoreFiles applies .gitignore and .codefinderignore patterns
	// found in the root.
	UseIgnoreFiles bool

	// VectorSize is the dimension used when creating a collection. Zero
	// leaves the choice to the store.
	VectorSize int
}

// OptionsFromConfig maps the ingest config section onto Options.
func OptionsFromConfig(cfg config.IngestConfig, vectorSize int) Options {
	return Options{
		BatchSize:       cfg.BatchSize,
		Workers:         cfg.Workers,
		WritesPerSecond: cfg.WritesPerSecond,
		ReadWorkers:     cfg.ReadWorkers,
		MaxFileSize:     cfg.MaxFileSize,
		UseIgnoreFiles:  !cfg.SkipIgnoreFiles,
		VectorSize:      vectorSize,
	}
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.ReadWorkers <= 0 {
		o.ReadWorkers = 8
	}
}

// Pipeline ingests directory trees into a vector store. It is safe for
// concurrent use; runs share the write rate limiter.
type Pipeline struct {
	chunkers  ChunkerFactory
	embedder  vectorstore.Embedder
	store     vectorstore.Store
	scrubbers ScrubberFactory
	collector *collector.Collector
	logger    *zap.Logger
	opts      Options
	limiter   *rate.Limiter
	metrics   *phaseMetrics
	detect    func(dir string) (vcs.Info, error)
}

// New creates a Pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Chunkers == nil || deps.Embedder == nil || deps.Store == nil {
		return nil, errors.New("ingest: chunkers, embedder and store are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WritesPerSecond < 0 {
		return nil, fmt.Errorf("ingest: writes per second cannot be negative")
	}
	opts.applyDefaults()

	p := &Pipeline{
		chunkers:  deps.Chunkers,
		embedder:  deps.Embedder,
		store:     deps.Store,
		scrubbers: deps.Scrubbers,
		collector: collector.New(logger.Named("collector")),
		logger:    logger,
		opts:      opts,
		metrics:   defaultPhaseMetrics(logger),
		detect:    vcs.Detect,
	}
	if opts.WritesPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.WritesPerSecond), 1)
	}
	return p, nil
}

// Handle returns a search handle for collection.
func (p *Pipeline) Handle(collection string) *Handle {
	return &Handle{collection: collection, embedder: p.embedder, store: p.store, logger: p.logger}
}

// Ingest runs one ingestion. The returned Result is non-nil whenever the
// request was valid, even if err is set.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx, span := tracer.Start(ctx, "ingest.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("ingest.run_id", runID),
		attribute.String("ingest.collection", req.Collection),
		attribute.Bool("ingest.dry_run", !req.ShouldIngest),
	)

	log := p.logger.With(zap.String("run.id", runID), zap.String("collection", req.Collection))
	result := &Result{
		RunID:      runID,
		Collection: req.Collection,
		DryRun:     !req.ShouldIngest,
		Handle:     p.Handle(req.Collection),
	}

	err := p.run(ctx, log, req, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		runs.WithLabelValues("error").Inc()
		log.Error("ingestion failed", zap.Error(err))
		return result, err
	}

	span.SetAttributes(
		attribute.Int("ingest.files", result.FilesCollected),
		attribute.Int("ingest.chunks", result.ChunksProduced),
		attribute.Int("ingest.written", result.ChunksWritten),
	)
	outcome := "success"
	if result.DryRun {
		outcome = "dry_run"
	} else if len(result.Failures) > 0 {
		outcome = "partial"
	}
	runs.WithLabelValues(outcome).Inc()
	log.Info("ingestion completed",
		zap.String("root", result.Root),
		zap.Int("files", result.FilesCollected),
		zap.Int("chunks", result.ChunksProduced),
		zap.Int("written", result.ChunksWritten),
		zap.Int("failures", len(result.Failures)),
		zap.Bool("dry_run", result.DryRun))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, req Request, result *Result) error {
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	ext, ok := language.Lookup(lang)
	if !ok {
		if req.StrictLanguage {
			_, err := language.MustResolve(req.Language)
			return err
		}
		ext = language.FallbackExtension
		log.Warn("unknown language, no files are likely to match",
			zap.String("language", req.Language),
			zap.String("extension", ext),
			zap.Strings("supported", language.Supported()))
	}
	result.Extension = ext

	var collected *collector.Result
	err := p.phase(ctx, log, result, PhaseCollect, func(ctx context.Context) error {
		var err error
		collected, err = p.collect(ctx, log, req, lang, ext)
		return err
	})
	if err != nil {
		return err
	}
	result.Root = collected.Root
	result.FilesCollected = len(collected.Files)
	result.FilesSkipped = len(collected.Skipped)
	if len(collected.Files) == 0 {
		log.Warn("no matching files found", zap.String("root", collected.Root), zap.String("extension", ext))
	}

	var chunks [][]chunker.Chunk
	err = p.phase(ctx, log, result, PhaseChunk, func(ctx context.Context) error {
		var err error
		chunks, err = p.chunk(ctx, req, collected.Files)
		return err
	})
	if err != nil {
		return err
	}
	for _, c := range chunks {
		result.ChunksProduced += len(c)
	}

	if !req.ShouldIngest {
		log.Info("dry run, skipping writes", zap.Int("chunks", result.ChunksProduced))
		return nil
	}

	return p.phase(ctx, log, result, PhaseWrite, func(ctx context.Context) error {
		return p.write(ctx, log, req, lang, collected, chunks, result)
	})
}

// phase runs fn inside a span and a PhaseTimer.
func (p *Pipeline) phase(ctx context.Context, log *zap.Logger, result *Result, name string, fn func(context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, "ingest."+name)
	defer span.End()

	timer := StartPhase(ctx, name, log, func(t PhaseTiming) {
		result.Timings = append(result.Timings, t)
	})
	timer.metrics = p.metrics
	defer func() { timer.Stop(err) }()

	err = fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) collect(ctx context.Context, log *zap.Logger, req Request, lang, ext string) (*collector.Result, error) {
	opts := collector.Options{
		ExcludeDirs: req.ExcludeDirs,
		MaxFileSize: p.opts.MaxFileSize,
		Workers:     p.opts.ReadWorkers,
		Language:    lang,
	}
	opts.IgnorePatterns = p.ignorePatterns(log, req.Directory)
	return p.collector.Collect(ctx, req.Directory, ext, opts)
}

// IgnorePatterns returns the ignore file patterns a run over dir applies.
// It is nil when ignore files are disabled or unreadable.
func (p *Pipeline) IgnorePatterns(dir string) []string {
	return p.ignorePatterns(p.logger, dir)
}

func (p *Pipeline) ignorePatterns(log *zap.Logger, dir string) []string {
	if !p.opts.UseIgnoreFiles {
		return nil
	}
	patterns, err := ignore.NewParser(ignore.DefaultIgnoreFiles, nil).ParseProject(dir)
	if err != nil {
		log.Warn("failed to read ignore files", zap.String("directory", dir), zap.Error(err))
		return nil
	}
	if err := ignore.ValidatePatterns(patterns); err != nil {
		log.Warn("ignoring invalid ignore file patterns", zap.Error(err))
		return nil
	}
	return patterns
}

func (p *Pipeline) chunk(ctx context.Context, req Request, files []collector.SourceFile) ([][]chunker.Chunk, error) {
	c, err := p.chunkers(req.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}
	chunks, err := c.ChunkBatch(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(chunks) != len(files) {
		return nil, fmt.Errorf("chunker returned %d sequences for %d files", len(chunks), len(files))
	}
	for i, seq := range chunks {
		for _, ch := range seq {
			if ch.TokenCount > req.ChunkSize {
				return nil, fmt.Errorf("%w: %s chunk %d has %d tokens, budget is %d",
					ErrChunkTooLarge, files[i].Path, ch.Index, ch.TokenCount, req.ChunkSize)
			}
		}
	}
	return chunks, nil
}

// pending is a chunk ready to embed.
type pending struct {
	id      string
	payload vectorstore.Payload
}

func (p *Pipeline) write(ctx context.Context, log *zap.Logger, req Request, lang string, collected *collector.Result, chunks [][]chunker.Chunk, result *Result) error {
	info, err := p.detect(collected.Root)
	switch {
	case err == nil:
		result.Branch, result.Commit = info.Branch, info.Commit
	case errors.Is(err, vcs.ErrNotRepository):
		log.Debug("not a git repository, payloads carry no revision", zap.String("root", collected.Root))
	default:
		log.Warn("failed to read git metadata", zap.Error(err))
	}

	if err := p.store.EnsureCollection(ctx, req.Collection, p.opts.VectorSize); err != nil {
		return fmt.Errorf("ensuring collection %s: %w", req.Collection, err)
	}

	var scrubber secrets.Scrubber = secrets.Noop{}
	if p.scrubbers != nil {
		s, err := p.scrubbers(collected.Root)
		if err != nil {
			return fmt.Errorf("creating secret scrubber: %w", err)
		}
		scrubber = s
	}

	items := make([]pending, 0, result.ChunksProduced)
	for i, seq := range chunks {
		path := collected.Files[i].Path
		for _, ch := range seq {
			scrubbed := scrubber.Scrub(path, ch.Text)
			if scrubbed.Redacted() {
				result.SecretsRedacted += len(scrubbed.Findings)
				for rule, n := range scrubbed.RuleCounts() {
					secretsRedacted.WithLabelValues(rule).Add(float64(n))
				}
				log.Warn("redacted secrets from chunk",
					zap.String("path", path),
					zap.Int("chunk_index", ch.Index),
					zap.Any("rules", scrubbed.RuleCounts()))
			}
			if req.Debug {
				log.Info("chunk",
					zap.String("path", path),
					zap.Int("chunk_index", ch.Index),
					zap.Int("tokens", ch.TokenCount),
					zap.String("text", scrubbed.Text))
			}
			items = append(items, pending{
				id: vectorstore.PointID(path, ch.Index, scrubbed.Text),
				payload: vectorstore.Payload{
					Text:        scrubbed.Text,
					FilePath:    path,
					ChunkIndex:  ch.Index,
					TokenCount:  ch.TokenCount,
					Language:    lang,
					Branch:      result.Branch,
					Commit:      result.Commit,
					ContentHash: vectorstore.ContentHash(scrubbed.Text),
				},
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	var (
		written atomic.Int64
		mu      sync.Mutex
	)
	for start := 0; start < len(items); start += p.opts.BatchSize {
		if gctx.Err() != nil {
			break
		}
		batch := items[start:min(start+p.opts.BatchSize, len(items))]
		g.Go(func() error {
			err := p.writeBatch(gctx, req.Collection, batch)
			if err == nil {
				written.Add(int64(len(batch)))
				return nil
			}
			batchFailures.Inc()
			first := batch[0].payload
			err = fmt.Errorf("writing %s chunk %d: %w", first.FilePath, first.ChunkIndex, err)
			if !req.ContinueOnError || ctx.Err() != nil {
				return err
			}
			log.Warn("batch failed, continuing", zap.Int("chunks", len(batch)), zap.Error(err))
			mu.Lock()
			result.Failures = append(result.Failures, failuresByFile(batch, err)...)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	result.ChunksWritten = int(written.Load())
	chunksWritten.Add(float64(result.ChunksWritten))

	sort.Slice(result.Failures, func(i, j int) bool {
		a, b := result.Failures[i], result.Failures[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.FirstChunk < b.FirstChunk
	})
	if err != nil {
		return err
	}
	// A canceled parent stops scheduling without any batch failing.
	return ctx.Err()
}

// failuresByFile splits a failed batch into one Failure per file. Chunks of
// a file are contiguous in a batch.
func failuresByFile(batch []pending, err error) []Failure {
	var out []Failure
	for _, item := range batch {
		if n := len(out); n > 0 && out[n-1].Path == item.payload.FilePath {
			out[n-1].Chunks++
			continue
		}
		out = append(out, Failure{
			Path:       item.payload.FilePath,
			FirstChunk: item.payload.ChunkIndex,
			Chunks:     1,
			Err:        err.Error(),
		})
	}
	return out
}

func (p *Pipeline) writeBatch(ctx context.Context, collection string, batch []pending) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.payload.Text
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedding: got %d vectors for %d chunks", len(vectors), len(batch))
	}

	records := make([]vectorstore.Record, len(batch))
	for i, item := range batch {
		records[i] = vectorstore.Record{ID: item.id, Vector: vectors[i], Payload: item.payload}
	}
	if err := p.store.Upsert(ctx, collection, records); err != nil {
		return fmt.Errorf("upserting: %w", err)
	}
	return nil
}
