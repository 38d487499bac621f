package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps everything
	// in memory.
	Path string

	// Compress enables gzip compression of persisted documents.
	Compress bool

	// VectorSize is the embedding dimension every collection uses.
	// Default: 384
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

var errNoEmbeddingFunc = errors.New("chromem store stores precomputed vectors only")

// precomputed is handed to chromem as the collection embedding function.
// Every document and query arrives with its vector, so it is never called.
func precomputed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// ChromemStore is a Store backed by an embedded chromem-go database.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemStore opens (or creates) the database described by config.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = openChromemDB(path, config.Compress, logger)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB: %w", err)
		}
		config.Path = path
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("persistent", config.Path != ""),
		zap.Int("vector_size", config.VectorSize))

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

// NewMemoryStore returns an in-memory ChromemStore.
func NewMemoryStore(vectorSize int, logger *zap.Logger) (*ChromemStore, error) {
	return NewChromemStore(ChromemConfig{VectorSize: vectorSize}, logger)
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// EnsureCollection creates the collection when it is absent.
func (s *ChromemStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	_, span := tracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_size", vectorSize),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if vectorSize <= 0 {
		vectorSize = s.config.VectorSize
	}
	if vectorSize != s.config.VectorSize {
		return fmt.Errorf("%w: requested size %d, store configured for %d", ErrDimensionMismatch, vectorSize, s.config.VectorSize)
	}

	if s.db.GetCollection(name, precomputed) != nil {
		return nil
	}
	metadata := map[string]string{"vector_size": strconv.Itoa(vectorSize)}
	if _, err := s.db.GetOrCreateCollection(name, metadata, precomputed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.logger.Info("created collection",
		zap.String("collection", name),
		zap.Int("vector_size", vectorSize))
	return nil
}

// CollectionExists reports whether the collection exists.
func (s *ChromemStore) CollectionExists(_ context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	return s.db.GetCollection(name, precomputed) != nil, nil
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	col := s.db.GetCollection(name, precomputed)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return col, nil
}

// Upsert writes records. A record with an existing ID replaces it.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, records []Record) error {
	ctx, span := tracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("record_count", len(records)),
	)

	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, s.config.VectorSize); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Payload.Text,
			Metadata:  r.Payload.stringMetadata(),
			Embedding: r.Vector,
		}
	}

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		upsertFailures.WithLabelValues(backendChromem).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to %s: %w", collection, err)
	}

	recordsUpserted.WithLabelValues(backendChromem).Add(float64(len(records)))
	s.logger.Debug("upserted records",
		zap.String("collection", collection),
		zap.Int("count", len(records)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query runs an exhaustive cosine similarity search.
func (s *ChromemStore) Query(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	defer observeQuery(backendChromem, time.Now())

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", limit),
	)

	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	limit, err = validateLimit(limit)
	if err != nil {
		return nil, err
	}
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection expects %d",
			ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	// chromem rejects limits larger than the collection.
	count := col.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if limit > count {
		limit = count
	}

	hits, err := col.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{
			ID:      h.ID,
			Score:   h.Similarity,
			Payload: payloadFromStrings(h.Content, h.Metadata),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Count returns the number of records in the collection.
func (s *ChromemStore) Count(_ context.Context, collection string) (int, error) {
	col, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Close is a no-op; persistent collections are written on every upsert.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)
