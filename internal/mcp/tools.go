package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/ingest"
	"github.com/pavanjava/semantic-code-finder/internal/sanitize"
	"github.com/pavanjava/semantic-code-finder/internal/search"
)

// Tool names.
const (
	toolIndexCodebase  = "index_codebase"
	toolSemanticSearch = "semantic_search"
)

// ===== INDEX CODEBASE =====

type indexCodebaseInput struct {
	Directory       string   `json:"directory" jsonschema:"required,Root directory of the source tree to index"`
	Language        string   `json:"language,omitempty" jsonschema:"Language whose files are indexed, e.g. python or go (default: server setting)"`
	Collection      string   `json:"collection,omitempty" jsonschema:"Collection to write chunks to (default: server setting)"`
	ChunkSize       int      `json:"chunk_size,omitempty" jsonschema:"Maximum tokens per chunk (default: server setting)"`
	DryRun          bool     `json:"dry_run,omitempty" jsonschema:"Collect and chunk without writing to the store"`
	ExcludeDirs     []string `json:"exclude_dirs,omitempty" jsonschema:"Directory names to skip at any depth"`
	ContinueOnError bool     `json:"continue_on_error,omitempty" jsonschema:"Record failed batches and keep writing"`
}

type indexCodebaseOutput struct {
	RunID           string           `json:"run_id"`
	Collection      string           `json:"collection"`
	Extension       string           `json:"extension,omitempty"`
	Branch          string           `json:"branch,omitempty"`
	Commit          string           `json:"commit,omitempty"`
	DryRun          bool             `json:"dry_run"`
	FilesCollected  int              `json:"files_collected"`
	FilesSkipped    int              `json:"files_skipped"`
	ChunksProduced  int              `json:"chunks_produced"`
	ChunksWritten   int              `json:"chunks_written"`
	SecretsRedacted int              `json:"secrets_redacted"`
	Failures        []ingest.Failure `json:"failures,omitempty"`
	ElapsedMs       int64            `json:"elapsed_ms"`
}

// ===== SEMANTIC SEARCH =====

type semanticSearchInput struct {
	Query      string `json:"query" jsonschema:"required,Natural language description of the code to find"`
	Collection string `json:"collection,omitempty" jsonschema:"Collection to search (default: server setting)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default: server setting)"`
}

type searchHit struct {
	Score      float32 `json:"score"`
	FilePath   string  `json:"file_path"`
	ChunkIndex int     `json:"chunk_index"`
	TokenCount int     `json:"token_count"`
	Content    string  `json:"content"`
	Branch     string  `json:"branch,omitempty"`
	Commit     string  `json:"commit,omitempty"`
}

type semanticSearchOutput struct {
	Query      string      `json:"query"`
	Collection string      `json:"collection"`
	Results    []searchHit `json:"results"`
	Count      int         `json:"count"`
}

// registerTools registers the MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolIndexCodebase,
		Description: "Index a source tree for semantic search: collect files of one language, split them into token-bounded chunks, embed them and store them in a collection. Re-indexing overwrites chunks in place.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args indexCodebaseInput) (*mcp.CallToolResult, indexCodebaseOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, toolIndexCodebase)
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, toolIndexCodebase)
			s.metrics.RecordInvocation(ctx, toolIndexCodebase, time.Since(start), toolErr)
		}()

		dir, err := sanitize.ValidatePath(args.Directory)
		if err != nil {
			toolErr = err
			return nil, indexCodebaseOutput{}, err
		}

		r := ingest.Request{
			Directory:       dir,
			Language:        firstNonEmpty(args.Language, s.config.Language),
			Collection:      firstNonEmpty(args.Collection, s.config.Collection),
			ChunkSize:       args.ChunkSize,
			ShouldIngest:    !args.DryRun,
			ExcludeDirs:     args.ExcludeDirs,
			ContinueOnError: args.ContinueOnError,
		}
		if r.ChunkSize <= 0 {
			r.ChunkSize = s.config.ChunkSize
		}

		result, err := s.ingester.Ingest(ctx, r)
		if err != nil {
			toolErr = err
			s.logger.Warn("index_codebase failed", zap.String("directory", args.Directory), zap.Error(err))
			return nil, indexCodebaseOutput{}, err
		}

		output := indexCodebaseOutput{
			RunID:           result.RunID,
			Collection:      result.Collection,
			Extension:       result.Extension,
			Branch:          result.Branch,
			Commit:          result.Commit,
			DryRun:          result.DryRun,
			FilesCollected:  result.FilesCollected,
			FilesSkipped:    result.FilesSkipped,
			ChunksProduced:  result.ChunksProduced,
			ChunksWritten:   result.ChunksWritten,
			SecretsRedacted: result.SecretsRedacted,
			Failures:        result.Failures,
			ElapsedMs:       time.Since(start).Milliseconds(),
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: summarize(output)},
			},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolSemanticSearch,
		Description: "Find code by meaning: rank indexed chunks in a collection by similarity to a natural language query.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args semanticSearchInput) (*mcp.CallToolResult, semanticSearchOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, toolSemanticSearch)
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, toolSemanticSearch)
			s.metrics.RecordInvocation(ctx, toolSemanticSearch, time.Since(start), toolErr)
		}()

		collection := firstNonEmpty(args.Collection, s.config.Collection)
		limit := args.Limit
		if limit == 0 {
			limit = s.config.Limit
		}

		results, err := s.ingester.Handle(collection).Search(ctx, args.Query, limit)
		if err != nil {
			toolErr = err
			return nil, semanticSearchOutput{}, err
		}

		hits := make([]searchHit, len(results))
		for i, r := range results {
			hits[i] = searchHit{
				Score:      r.Score,
				FilePath:   r.Payload.FilePath,
				ChunkIndex: r.Payload.ChunkIndex,
				TokenCount: r.Payload.TokenCount,
				Content:    r.Payload.Text,
				Branch:     r.Payload.Branch,
				Commit:     r.Payload.Commit,
			}
		}
		output := semanticSearchOutput{
			Query:      args.Query,
			Collection: collection,
			Results:    hits,
			Count:      len(hits),
		}

		var report strings.Builder
		if err := search.Print(&report, args.Query, results, s.config.PreviewLines); err != nil {
			toolErr = err
			return nil, semanticSearchOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: report.String()}},
		}, output, nil
	})
}

func summarize(o indexCodebaseOutput) string {
	verb := "Indexed"
	if o.DryRun {
		verb = "Dry run over"
	}
	text := fmt.Sprintf("%s %d files into %s: %d chunks produced, %d written",
		verb, o.FilesCollected, o.Collection, o.ChunksProduced, o.ChunksWritten)
	if len(o.Failures) > 0 {
		text += fmt.Sprintf(", %d batches failed", len(o.Failures))
	}
	return text
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
