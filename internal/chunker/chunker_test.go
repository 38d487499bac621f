package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavanjava/semantic-code-finder/internal/collector"
	"github.com/pavanjava/semantic-code-finder/internal/language"
)

const pythonSource = `import os


class Loader:
    def __init__(self, root):
        self.root = root

    def load(self, name):
        path = os.path.join(self.root, name)
        with open(path) as fh:
            return fh.read()


def main():
    loader = Loader("/tmp")
    print(loader.load("data.txt"))
`

func newWordChunker(t *testing.T, size int) *RecursiveChunker {
	t.Helper()
	c, err := NewRecursiveChunker(size, WordTokenizer{}, nil)
	require.NoError(t, err)
	return c
}

func TestNewRecursiveChunker_Validation(t *testing.T) {
	_, err := NewRecursiveChunker(0, WordTokenizer{}, nil)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = NewRecursiveChunker(-5, WordTokenizer{}, nil)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = NewRecursiveChunker(10, nil, nil)
	assert.Error(t, err)
}

func TestChunkFile_RespectsBudget(t *testing.T) {
	c := newWordChunker(t, 12)

	chunks, err := c.ChunkFile(collector.SourceFile{Path: "loader.py", Contents: pythonSource, Language: "python"})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, "loader.py", ch.SourcePath)
		assert.LessOrEqual(t, ch.TokenCount, 12, "chunk %d: %q", i, ch.Text)
		assert.Equal(t, WordTokenizer{}.Count(ch.Text), ch.TokenCount)
		assert.NotEmpty(t, ch.Text)
	}
}

func TestChunkFile_PreservesContentOrder(t *testing.T) {
	c := newWordChunker(t, 8)

	chunks, err := c.ChunkFile(collector.SourceFile{Path: "loader.py", Contents: pythonSource, Language: "python"})
	require.NoError(t, err)

	// Every word of the source appears exactly once, in order.
	var words []string
	prevEnd := 0
	for _, ch := range chunks {
		words = append(words, strings.Fields(ch.Text)...)
		require.GreaterOrEqual(t, ch.StartOffset, prevEnd)
		assert.Equal(t, ch.Text, pythonSource[ch.StartOffset:ch.EndOffset])
		prevEnd = ch.EndOffset
	}
	assert.Equal(t, strings.Fields(pythonSource), words)
}

func TestChunkFile_SmallFileIsOneChunk(t *testing.T) {
	c := newWordChunker(t, 2048)

	chunks, err := c.ChunkFile(collector.SourceFile{Path: "a.py", Contents: "x = 1\ny = 2\n"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "x = 1\ny = 2", chunks[0].Text)
	assert.Equal(t, 6, chunks[0].TokenCount)
	assert.Equal(t, 0, chunks[0].StartOffset)
}

func TestChunkFile_EmptyFile(t *testing.T) {
	c := newWordChunker(t, 10)

	for _, contents := range []string{"", "   \n\n\t"} {
		chunks, err := c.ChunkFile(collector.SourceFile{Path: "empty.py", Contents: contents})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunkFile_SplitsTextWithoutSeparators(t *testing.T) {
	// A tokenizer that counts characters forces splits inside words.
	c, err := NewRecursiveChunker(16, charTokenizer{}, nil)
	require.NoError(t, err)

	long := strings.Repeat("abcdefghij", 10)
	chunks, err := c.ChunkFile(collector.SourceFile{Path: "long.txt", Contents: long})
	require.NoError(t, err)

	var rebuilt strings.Builder
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 16)
		rebuilt.WriteString(ch.Text)
	}
	assert.Equal(t, long, rebuilt.String())
}

func TestChunkBatch_OrderAndIndices(t *testing.T) {
	c := newWordChunker(t, 5)
	files := []collector.SourceFile{
		{Path: "a.py", Contents: "one two three four five six seven eight nine ten"},
		{Path: "b.py", Contents: ""},
		{Path: "c.py", Contents: "alpha beta"},
	}

	batches, err := c.ChunkBatch(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	require.Len(t, batches[0], 2)
	assert.Equal(t, "one two three four five", batches[0][0].Text)
	assert.Equal(t, "six seven eight nine ten", batches[0][1].Text)
	assert.Empty(t, batches[1])
	require.Len(t, batches[2], 1)

	for i, seq := range batches {
		for j, ch := range seq {
			assert.Equal(t, files[i].Path, ch.SourcePath)
			assert.Equal(t, j, ch.Index)
		}
	}
}

func TestChunkBatch_ContextCanceled(t *testing.T) {
	c := newWordChunker(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ChunkBatch(ctx, []collector.SourceFile{{Path: "a.py", Contents: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeparatorsFor(t *testing.T) {
	assert.Equal(t, "\nclass ", separatorsFor("python")[0])
	assert.Equal(t, "\nfunc ", separatorsFor("Go")[0])
	assert.Equal(t, defaultSeparators, separatorsFor("cobol"))

	for _, name := range language.Supported() {
		_, ok := languageSeparators[name]
		assert.True(t, ok, "no separators for %s", name)
	}
	for name := range languageSeparators {
		_, ok := language.Lookup(name)
		assert.True(t, ok, "separators for unsupported language %s", name)
	}
}

func TestNewTokenizer(t *testing.T) {
	tok, err := NewTokenizer("words")
	require.NoError(t, err)
	assert.Equal(t, 3, tok.Count("a b  c"))

	_, err = NewTokenizer("sentencepiece")
	assert.Error(t, err)
}

type charTokenizer struct{}

func (charTokenizer) Count(text string) int { return len([]rune(text)) }

func TestEnforceLimit(t *testing.T) {
	c, err := NewRecursiveChunker(16, charTokenizer{}, nil)
	require.NoError(t, err)

	text := "first line\n" + strings.Repeat("é", 30) + "\nlast"
	parts := c.enforceLimit(text)
	require.Greater(t, len(parts), 1)
	assert.Equal(t, text, strings.Join(parts, ""))
	for _, p := range parts {
		assert.LessOrEqual(t, charTokenizer{}.Count(p), 16)
	}
}
