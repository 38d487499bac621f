package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/chunker"
	"github.com/pavanjava/semantic-code-finder/internal/ingest"
	"github.com/pavanjava/semantic-code-finder/internal/vectorstore"
)

// keywordEmbedder places texts on three axes by keyword.
type keywordEmbedder struct{}

func (keywordEmbedder) vector(text string) []float32 {
	v := []float32{0.01, 0.01, 0.01}
	for i, kw := range []string{"cache", "http", "sql"} {
		if strings.Contains(text, kw) {
			v[i] = 1
		}
	}
	return v
}

func (e keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func newPipeline(t *testing.T) *ingest.Pipeline {
	t.Helper()
	store, err := vectorstore.NewMemoryStore(3, zap.NewNop())
	require.NoError(t, err)
	p, err := ingest.New(ingest.Deps{
		Chunkers: ingest.RecursiveChunkers(chunker.WordTokenizer{}, nil),
		Embedder: keywordEmbedder{},
		Store:    store,
	}, ingest.Options{})
	require.NoError(t, err)
	return p
}

func sourceTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"cache.py": "def cache_get(key):\n    return cache[key]\n",
		"web.py":   "def fetch(url):\n    return http.get(url)\n",
		"db.py":    "def query(q):\n    return sql.run(q)\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// connect serves s over an in-memory transport and returns a client session.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	serverT, clientT := mcp.NewInMemoryTransports()

	done := make(chan error, 1)
	go func() { done <- s.RunTransport(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		cancel()
		<-done
	})
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func text(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestNewServer(t *testing.T) {
	t.Run("requires ingester", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ingester is required")
	})

	t.Run("applies defaults", func(t *testing.T) {
		s, err := NewServer(&Config{Collection: "mine"}, newPipeline(t))
		require.NoError(t, err)
		assert.Equal(t, "codefinder", s.config.Name)
		assert.Equal(t, "mine", s.config.Collection)
		assert.Equal(t, "python", s.config.Language)
		assert.Equal(t, 2048, s.config.ChunkSize)
		assert.Equal(t, 5, s.config.Limit)
		assert.NotNil(t, s.logger)
	})
}

func TestListTools(t *testing.T) {
	s, err := NewServer(nil, newPipeline(t))
	require.NoError(t, err)
	cs := connect(t, s)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{toolIndexCodebase, toolSemanticSearch}, names)
}

func TestIndexThenSearch(t *testing.T) {
	s, err := NewServer(nil, newPipeline(t))
	require.NoError(t, err)
	cs := connect(t, s)

	res := call(t, cs, toolIndexCodebase, map[string]any{"directory": sourceTree(t), "chunk_size": 200})
	require.False(t, res.IsError, text(res))
	indexed := decode[indexCodebaseOutput](t, res)
	assert.Equal(t, 3, indexed.FilesCollected)
	assert.Equal(t, 3, indexed.ChunksWritten)
	assert.Equal(t, "codebase_chunks", indexed.Collection)
	assert.Equal(t, ".py", indexed.Extension)
	assert.NotEmpty(t, indexed.RunID)
	assert.Contains(t, text(res), "Indexed 3 files into codebase_chunks")

	res = call(t, cs, toolSemanticSearch, map[string]any{"query": "sql query", "limit": 2})
	require.False(t, res.IsError, text(res))
	found := decode[semanticSearchOutput](t, res)
	require.Equal(t, 2, found.Count)
	assert.Equal(t, "db.py", found.Results[0].FilePath)
	assert.Contains(t, found.Results[0].Content, "sql.run")
	assert.Contains(t, text(res), "Searching for: 'sql query'")
	assert.Contains(t, text(res), "File: db.py")
}

func TestIndexCodebase_DryRun(t *testing.T) {
	s, err := NewServer(nil, newPipeline(t))
	require.NoError(t, err)
	cs := connect(t, s)

	res := call(t, cs, toolIndexCodebase, map[string]any{"directory": sourceTree(t), "dry_run": true})
	require.False(t, res.IsError, text(res))
	out := decode[indexCodebaseOutput](t, res)
	assert.True(t, out.DryRun)
	assert.Equal(t, 3, out.ChunksProduced)
	assert.Zero(t, out.ChunksWritten)
	assert.Contains(t, text(res), "Dry run over 3 files")

	res = call(t, cs, toolSemanticSearch, map[string]any{"query": "cache"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "collection not found")
}

func TestIndexCodebase_Errors(t *testing.T) {
	s, err := NewServer(nil, newPipeline(t))
	require.NoError(t, err)
	cs := connect(t, s)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing directory on disk", map[string]any{"directory": filepath.Join(t.TempDir(), "gone")}, "directory not found"},
		{"bad collection", map[string]any{"directory": t.TempDir(), "collection": "Bad Name"}, "invalid ingest request"},
		{"traversal", map[string]any{"directory": "../../etc"}, "directory traversal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, cs, toolIndexCodebase, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text(res), tt.want)
		})
	}
}

func TestSemanticSearch_EmptyQuery(t *testing.T) {
	s, err := NewServer(nil, newPipeline(t))
	require.NoError(t, err)
	cs := connect(t, s)

	res := call(t, cs, toolSemanticSearch, map[string]any{"query": "   "})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "query cannot be empty")
}
