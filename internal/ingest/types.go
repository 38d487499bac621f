package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/search"
	"github.com/pavanjava/semantic-code-finder/internal/vectorstore"
)

var (
	// ErrInvalidRequest indicates a malformed Request.
	ErrInvalidRequest = errors.New("invalid ingest request")

	// ErrChunkTooLarge indicates the chunker produced a chunk above the
	// requested token budget.
	ErrChunkTooLarge = errors.New("chunk exceeds token budget")
)

// Phase names used in timings, logs and metrics.
const (
	PhaseCollect = "collect"
	PhaseChunk   = "chunk"
	PhaseWrite   = "write"
)

// Request describes one ingestion run.
type Request struct {
	// Directory is the root of the tree to ingest.
	Directory string `json:"directory"`

	// Language selects the file extension to collect, e.g. "python".
	Language string `json:"language"`

	// Collection is the vector store collection written to.
	Collection string `json:"collection"`

	// ChunkSize is the maximum number of tokens per chunk.
	ChunkSize int `json:"chunk_size"`

	// ShouldIngest false makes the run a dry run: files are collected and
	// chunked but the store is never called.
	ShouldIngest bool `json:"should_ingest"`

	// Debug logs every chunk's text at info level before it is written.
	Debug bool `json:"debug"`

	// ExcludeDirs are directory names skipped at any depth. Nil selects
	// the collector defaults.
	ExcludeDirs []string `json:"exclude_dirs,omitempty"`

	// ContinueOnError records failed batches in Result.Failures and keeps
	// writing. By default the first failure aborts the run.
	ContinueOnError bool `json:"continue_on_error"`

	// StrictLanguage makes an unknown Language an error instead of a
	// warning.
	StrictLanguage bool `json:"strict_language"`
}

func (r Request) validate() error {
	if r.Directory == "" {
		return fmt.Errorf("%w: directory is required", ErrInvalidRequest)
	}
	if r.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidRequest, r.ChunkSize)
	}
	if err := vectorstore.ValidateCollectionName(r.Collection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Failure is a batch that could not be written.
type Failure struct {
	Path       string `json:"path"`
	FirstChunk int    `json:"first_chunk"`
	Chunks     int    `json:"chunks"`
	Err        string `json:"error"`
}

// PhaseTiming is the wall time of one phase.
type PhaseTiming struct {
	Phase   string        `json:"phase"`
	Elapsed time.Duration `json:"elapsed"`
	Err     string        `json:"error,omitempty"`
}

// Result summarizes a run. On error the partially filled Result is returned
// alongside the error.
type Result struct {
	RunID      string `json:"run_id"`
	Collection string `json:"collection"`
	Root       string `json:"root,omitempty"`
	Extension  string `json:"extension,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Commit     string `json:"commit,omitempty"`
	DryRun     bool   `json:"dry_run"`

	FilesCollected  int `json:"files_collected"`
	FilesSkipped    int `json:"files_skipped"`
	ChunksProduced  int `json:"chunks_produced"`
	ChunksWritten   int `json:"chunks_written"`
	SecretsRedacted int `json:"secrets_redacted"`

	Failures []Failure     `json:"failures,omitempty"`
	Timings  []PhaseTiming `json:"timings"`

	// Handle searches the collection with the embedder used for the run.
	Handle *Handle `json:"-"`
}

// Timing returns the elapsed time of phase.
func (r *Result) Timing(phase string) (time.Duration, bool) {
	for _, t := range r.Timings {
		if t.Phase == phase {
			return t.Elapsed, true
		}
	}
	return 0, false
}

// Handle is a collection bound to the store and embedder that filled it.
type Handle struct {
	collection string
	embedder   vectorstore.Embedder
	store      vectorstore.Store
	logger     *zap.Logger
}

// Collection returns the collection name.
func (h *Handle) Collection() string { return h.collection }

// Searcher returns a Searcher over the collection.
func (h *Handle) Searcher() (*search.Searcher, error) {
	return search.New(h.embedder, h.store, h.collection, h.logger)
}

// Search is shorthand for Searcher().Search.
func (h *Handle) Search(ctx context.Context, query string, limit int) ([]vectorstore.SearchResult, error) {
	s, err := h.Searcher()
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, query, limit)
}
