package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/ingest"
)

// Ingester runs ingestions and hands out search handles.
// *ingest.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
	Handle(collection string) *ingest.Handle
}

// Server serves the codefinder tools over MCP.
type Server struct {
	mcp      *mcp.Server
	ingester Ingester
	config   *Config
	metrics  *Metrics
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "codefinder")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *zap.Logger

	// Defaults for arguments a tool call omits.
	Collection string
	Language   string
	ChunkSize  int
	Limit      int

	// PreviewLines limits the code shown per search result in the text
	// report. Zero shows whole chunks.
	PreviewLines int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:       "codefinder",
		Version:    "dev",
		Logger:     zap.NewNop(),
		Collection: "codebase_chunks",
		Language:   "python",
		ChunkSize:  2048,
		Limit:      5,

		PreviewLines: 10,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.Collection == "" {
		c.Collection = d.Collection
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
}

// NewServer creates an MCP server backed by ingester.
func NewServer(cfg *Config, ingester Ingester) (*Server, error) {
	if ingester == nil {
		return nil, fmt.Errorf("ingester is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		ingester: ingester,
		config:   cfg,
		metrics:  NewMetrics(cfg.Logger),
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves a single session over t until the client disconnects
// or ctx is done.
func (s *Server) RunTransport(ctx context.Context, t mcp.Transport) error {
	if err := s.mcp.Run(ctx, t); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
