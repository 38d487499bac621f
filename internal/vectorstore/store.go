package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the store could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// collection's vector size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidLimit indicates a non-positive query limit.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrCircuitOpen is returned while the store is refusing calls after
	// repeated failures.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// MaxQueryLimit caps the number of results a single query may request.
const MaxQueryLimit = 10000

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateCollectionName checks name against ^[a-z0-9_-]{1,64}$.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_-]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates one embedding per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Record is one embedded chunk ready to be written.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchResult is one hit returned by Query.
type SearchResult struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// Store is the interface for vector storage operations.
type Store interface {
	// EnsureCollection creates the collection if it does not exist. An
	// existing collection with a different vector size is an
	// ErrDimensionMismatch.
	EnsureCollection(ctx context.Context, name string, vectorSize int) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Upsert writes records, replacing any record with the same ID.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Query returns up to limit records nearest to vector, highest score
	// first. A missing collection is ErrCollectionNotFound.
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases the store's resources.
	Close() error
}

func validateRecords(records []Record, vectorSize int) error {
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record %d: empty id", i)
		}
		if vectorSize > 0 && len(r.Vector) != vectorSize {
			return fmt.Errorf("%w: record %d has %d dimensions, collection expects %d",
				ErrDimensionMismatch, i, len(r.Vector), vectorSize)
		}
	}
	return nil
}

func validateLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	return limit, nil
}
