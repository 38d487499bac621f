// Package chunker splits source files into ordered, token-bounded chunks.
package chunker

import (
	"context"
	"errors"

	"github.com/pavanjava/semantic-code-finder/internal/collector"
)

// ErrInvalidChunkSize indicates a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Chunk is one contiguous region of a source file.
type Chunk struct {
	// Text is the chunk content, trimmed of surrounding whitespace.
	Text string

	// TokenCount is the number of tokens in Text.
	TokenCount int

	// SourcePath is the path of the file the chunk came from.
	SourcePath string

	// Index is the position of the chunk within its file, starting at 0.
	Index int

	// StartOffset and EndOffset are the byte range of Text in the file,
	// or -1 when the range could not be located.
	StartOffset int
	EndOffset   int
}

// Tokenizer counts tokens.
type Tokenizer interface {
	Count(text string) int
}

// Chunker turns a batch of files into per-file chunk sequences.
//
// The result has one sequence per input file, in input order. Chunks inside
// a sequence are in file order with Index 0, 1, 2, ...
type Chunker interface {
	ChunkBatch(ctx context.Context, files []collector.SourceFile) ([][]Chunk, error)
}
