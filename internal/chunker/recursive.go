package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/collector"
)

var tracer = otel.Tracer("github.com/pavanjava/semantic-code-finder/internal/chunker")

// languageSeparators prefer declaration boundaries, then blank lines, then
// lines, then words, then characters.
var languageSeparators = map[string][]string{
	"python":     {"\nclass ", "\ndef ", "\n\tdef ", "\n    def ", "\n\n", "\n", " ", ""},
	"go":         {"\nfunc ", "\ntype ", "\nvar ", "\nconst ", "\n\n", "\n", " ", ""},
	"javascript": {"\nfunction ", "\nclass ", "\nexport ", "\nconst ", "\n\n", "\n", " ", ""},
	"typescript": {"\nfunction ", "\nclass ", "\ninterface ", "\ntype ", "\nexport ", "\n\n", "\n", " ", ""},
	"java":       {"\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\n\n", "\n", " ", ""},
	"scala":      {"\nclass ", "\nobject ", "\ntrait ", "\ndef ", "\n  def ", "\n\n", "\n", " ", ""},
	"kotlin":     {"\nclass ", "\nfun ", "\nobject ", "\n\n", "\n", " ", ""},
	"rust":       {"\nfn ", "\npub fn ", "\nimpl ", "\nstruct ", "\nenum ", "\nmod ", "\n\n", "\n", " ", ""},
	"ruby":       {"\nclass ", "\nmodule ", "\ndef ", "\n\n", "\n", " ", ""},
	"php":        {"\nclass ", "\nfunction ", "\n\n", "\n", " ", ""},
	"swift":      {"\nclass ", "\nstruct ", "\nfunc ", "\nextension ", "\n\n", "\n", " ", ""},
	"c":          {"\n\n", "\n", " ", ""},
	"cpp":        {"\nclass ", "\nnamespace ", "\n\n", "\n", " ", ""},
}

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

func separatorsFor(language string) []string {
	if seps, ok := languageSeparators[strings.ToLower(language)]; ok {
		return seps
	}
	return defaultSeparators
}

// RecursiveChunker splits files on language-aware separators and merges the
// pieces back up to the token budget.
type RecursiveChunker struct {
	chunkSize int
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewRecursiveChunker creates a chunker producing chunks of at most chunkSize
// tokens as counted by tokenizer. A nil logger disables logging.
func NewRecursiveChunker(chunkSize int, tokenizer Tokenizer, logger *zap.Logger) (*RecursiveChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}
	if tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecursiveChunker{chunkSize: chunkSize, tokenizer: tokenizer, logger: logger}, nil
}

// ChunkSize returns the token budget per chunk.
func (c *RecursiveChunker) ChunkSize() int { return c.chunkSize }

// ChunkBatch chunks every file. Empty files produce an empty sequence.
func (c *RecursiveChunker) ChunkBatch(ctx context.Context, files []collector.SourceFile) ([][]Chunk, error) {
	ctx, span := tracer.Start(ctx, "chunker.ChunkBatch")
	defer span.End()

	out := make([][]Chunk, len(files))
	total := 0
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := c.ChunkFile(f)
		if err != nil {
			return nil, fmt.Errorf("chunking %s: %w", f.Path, err)
		}
		out[i] = chunks
		total += len(chunks)
	}

	span.SetAttributes(
		attribute.Int("chunker.files", len(files)),
		attribute.Int("chunker.chunks", total),
		attribute.Int("chunker.chunk_size", c.chunkSize),
	)
	return out, nil
}

// ChunkFile splits a single file.
func (c *RecursiveChunker) ChunkFile(f collector.SourceFile) ([]Chunk, error) {
	if strings.TrimSpace(f.Contents) == "" {
		return []Chunk{}, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.chunkSize),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators(separatorsFor(f.Language)),
		textsplitter.WithLenFunc(c.tokenizer.Count),
		textsplitter.WithKeepSeparator(true),
	)
	pieces, err := splitter.SplitText(f.Contents)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(pieces))
	cursor := 0
	for _, piece := range pieces {
		for _, part := range c.enforceLimit(piece) {
			text := strings.TrimSpace(part)
			if text == "" {
				continue
			}

			start, end := -1, -1
			if at := strings.Index(f.Contents[cursor:], text); at >= 0 {
				start = cursor + at
				end = start + len(text)
				cursor = end
			}

			chunks = append(chunks, Chunk{
				Text:        text,
				TokenCount:  c.tokenizer.Count(text),
				SourcePath:  f.Path,
				Index:       len(chunks),
				StartOffset: start,
				EndOffset:   end,
			})
		}
	}

	c.logger.Debug("file chunked",
		zap.String("path", f.Path),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// enforceLimit halves text until every part fits the budget. The splitter
// merges pieces by summing their counts, and a BPE count of joined text can
// exceed that sum.
func (c *RecursiveChunker) enforceLimit(text string) []string {
	if c.tokenizer.Count(text) <= c.chunkSize {
		return []string{text}
	}
	if utf8.RuneCountInString(text) <= 1 {
		return []string{text}
	}

	cut := splitPoint(text)
	return append(c.enforceLimit(text[:cut]), c.enforceLimit(text[cut:])...)
}

// splitPoint returns a byte offset near the middle of text, on a rune
// boundary, moved back to the preceding newline when there is one in the
// first half.
func splitPoint(text string) int {
	mid := len(text) / 2
	for mid > 0 && !utf8.RuneStart(text[mid]) {
		mid--
	}
	if mid == 0 {
		_, size := utf8.DecodeRuneInString(text)
		mid = size
	}
	if nl := strings.LastIndexByte(text[:mid], '\n'); nl > 0 {
		return nl + 1
	}
	return mid
}
