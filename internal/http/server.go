// Package http serves the codefinder HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/collector"
	"github.com/pavanjava/semantic-code-finder/internal/ingest"
	"github.com/pavanjava/semantic-code-finder/internal/language"
	"github.com/pavanjava/semantic-code-finder/internal/logging"
	"github.com/pavanjava/semantic-code-finder/internal/sanitize"
	"github.com/pavanjava/semantic-code-finder/internal/search"
	"github.com/pavanjava/semantic-code-finder/internal/vectorstore"
)

// Ingester runs ingestions and hands out search handles.
// *ingest.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
	Handle(collection string) *ingest.Handle
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// Defaults fill fields omitted from request bodies.
	Collection string
	Language   string
	ChunkSize  int
	Limit      int

	// IngestRoots restricts POST /api/v1/ingest to directories beneath
	// these paths. Empty allows any directory.
	IngestRoots []string

	Version string
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 9090
	}
	if c.Collection == "" {
		c.Collection = "codebase_chunks"
	}
	if c.Language == "" {
		c.Language = "python"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 2048
	}
	if c.Limit <= 0 {
		c.Limit = 5
	}
}

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	ingester Ingester
	health   func(context.Context) error
	logger   *zap.Logger
	config   *Config
}

// NewServer creates a Server. health, when set, is called by GET /health
// to probe the vector store.
func NewServer(ingester Ingester, health func(context.Context) error, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ingester == nil {
		return nil, fmt.Errorf("ingester cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), reqID)))

			err := next(c)

			logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", reqID),
			)
			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:     e,
		ingester: ingester,
		health:   health,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/search", s.handleSearch)
	v1.POST("/ingest", s.handleIngest)
	v1.GET("/languages", s.handleLanguages)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Store   string `json:"store"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.config.Version, Store: "ok"}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = "unavailable"
			resp.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query      string `json:"query"`
	Collection string `json:"collection,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// SearchHit is one ranked chunk.
type SearchHit struct {
	Score      float32 `json:"score"`
	FilePath   string  `json:"filepath"`
	ChunkIndex int     `json:"chunk_index"`
	TokenCount int     `json:"token_count"`
	Text       string  `json:"text"`
	Branch     string  `json:"branch,omitempty"`
	Commit     string  `json:"commit,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Query      string      `json:"query"`
	Collection string      `json:"collection"`
	Results    []SearchHit `json:"results"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.Collection == "" {
		req.Collection = s.config.Collection
	}
	if req.Limit == 0 {
		req.Limit = s.config.Limit
	}

	results, err := s.ingester.Handle(req.Collection).Search(c.Request().Context(), req.Query, req.Limit)
	if err != nil {
		return s.toHTTPError("search", err)
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{
			Score:      r.Score,
			FilePath:   r.Payload.FilePath,
			ChunkIndex: r.Payload.ChunkIndex,
			TokenCount: r.Payload.TokenCount,
			Text:       r.Payload.Text,
			Branch:     r.Payload.Branch,
			Commit:     r.Payload.Commit,
		}
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: req.Query, Collection: req.Collection, Results: hits})
}

// IngestRequest is the request body for POST /api/v1/ingest.
type IngestRequest struct {
	Directory       string   `json:"directory"`
	Language        string   `json:"language,omitempty"`
	Collection      string   `json:"collection,omitempty"`
	ChunkSize       int      `json:"chunk_size,omitempty"`
	DryRun          bool     `json:"dry_run,omitempty"`
	ExcludeDirs     []string `json:"exclude_dirs,omitempty"`
	ContinueOnError bool     `json:"continue_on_error,omitempty"`
	StrictLanguage  bool     `json:"strict_language,omitempty"`
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Directory == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "directory field is required")
	}
	dir, err := sanitize.ValidatePath(req.Directory, s.config.IngestRoots...)
	if err != nil {
		return s.toHTTPError("ingest", err)
	}

	r := ingest.Request{
		Directory:       dir,
		Language:        firstNonEmpty(req.Language, s.config.Language),
		Collection:      firstNonEmpty(req.Collection, s.config.Collection),
		ChunkSize:       req.ChunkSize,
		ShouldIngest:    !req.DryRun,
		ExcludeDirs:     req.ExcludeDirs,
		ContinueOnError: req.ContinueOnError,
		StrictLanguage:  req.StrictLanguage,
	}
	if r.ChunkSize == 0 {
		r.ChunkSize = s.config.ChunkSize
	}

	result, err := s.ingester.Ingest(c.Request().Context(), r)
	if err != nil {
		return s.toHTTPError("ingest", err)
	}
	return c.JSON(http.StatusOK, result)
}

// LanguageInfo is one entry of GET /api/v1/languages.
type LanguageInfo struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

func (s *Server) handleLanguages(c echo.Context) error {
	names := language.Supported()
	out := make([]LanguageInfo, len(names))
	for i, name := range names {
		ext, _ := language.Lookup(name)
		out[i] = LanguageInfo{Name: name, Extension: ext}
	}
	return c.JSON(http.StatusOK, out)
}

// toHTTPError maps domain errors onto status codes.
func (s *Server) toHTTPError(op string, err error) error {
	switch {
	case errors.Is(err, ingest.ErrInvalidRequest),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, vectorstore.ErrInvalidLimit),
		errors.Is(err, vectorstore.ErrInvalidCollectionName),
		errors.Is(err, language.ErrUnknownLanguage),
		errors.Is(err, collector.ErrNotDirectory),
		errors.Is(err, collector.ErrEmptyPath),
		errors.Is(err, sanitize.ErrEmptyPath),
		errors.Is(err, sanitize.ErrPathTraversal):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, sanitize.ErrOutsideRoots):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, vectorstore.ErrCollectionNotFound),
		errors.Is(err, collector.ErrDirectoryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, vectorstore.ErrCircuitOpen):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	}
	s.logger.Error(op+" failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, op+" failed")
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
