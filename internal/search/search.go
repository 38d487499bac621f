// Package search runs semantic queries against an ingested collection.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/vectorstore"
)

var tracer = otel.Tracer("github.com/pavanjava/semantic-code-finder/internal/search")

// MaxLimit caps the number of results returned by one search.
const MaxLimit = 100

var (
	// ErrEmptyQuery indicates a blank query string.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidLimit indicates a non-positive result limit.
	ErrInvalidLimit = vectorstore.ErrInvalidLimit
)

// Searcher queries one collection. It must be given the same embedder that
// produced the collection's vectors.
type Searcher struct {
	embedder   vectorstore.Embedder
	store      vectorstore.Store
	collection string
	logger     *zap.Logger
}

// New creates a Searcher bound to collection.
func New(embedder vectorstore.Embedder, store vectorstore.Store, collection string, logger *zap.Logger) (*Searcher, error) {
	if embedder == nil || store == nil {
		return nil, errors.New("search: embedder and store are required")
	}
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{embedder: embedder, store: store, collection: collection, logger: logger}, nil
}

// Collection returns the collection the Searcher queries.
func (s *Searcher) Collection() string { return s.collection }

// Search embeds query and returns up to limit chunks, most similar first.
// A limit above MaxLimit is capped. A collection that was never ingested
// yields vectorstore.ErrCollectionNotFound.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]vectorstore.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "search.Search")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	span.SetAttributes(
		attribute.String("collection", s.collection),
		attribute.Int("limit", limit),
	)

	start := time.Now()
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.store.Query(ctx, s.collection, vector, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("searching %s: %w", s.collection, err)
	}

	s.logger.Debug("search completed",
		zap.String("collection", s.collection),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}
