package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pavanjava/semantic-code-finder/internal/ignore"
)

var tracer = otel.Tracer("github.com/pavanjava/semantic-code-finder/internal/collector")

// Collector scans directory trees for source files.
type Collector struct {
	logger   *zap.Logger
	readFile func(name string) ([]byte, error)
}

// New creates a Collector. A nil logger disables logging.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger, readFile: os.ReadFile}
}

// candidate is a matching file found by the walk, before it is read.
type candidate struct {
	abs  string
	rel  string
	size int64
}

// Collect scans dir for files ending in extension and returns their contents.
//
// The filesystem is never modified. Unreadable files are skipped and reported
// in Result.Skipped; only a bad root, invalid options or ctx cancellation
// produce an error.
func (c *Collector) Collect(ctx context.Context, dir, extension string, opts Options) (*Result, error) {
	ctx, span := tracer.Start(ctx, "collector.Collect")
	defer span.End()

	root, err := validateRoot(dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid root")
		return nil, err
	}
	if !strings.HasPrefix(extension, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExtension, extension)
	}
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	if err := ignore.ValidatePatterns(opts.IgnorePatterns); err != nil {
		return nil, fmt.Errorf("invalid ignore pattern: %w", err)
	}

	span.SetAttributes(
		attribute.String("collector.root", root),
		attribute.String("collector.extension", extension),
	)

	result := &Result{Root: root, Extension: extension}

	candidates, err := c.walk(ctx, root, extension, opts, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "walk failed")
		return nil, err
	}

	if err := c.read(ctx, candidates, opts, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("collector.files", len(result.Files)),
		attribute.Int("collector.skipped", len(result.Skipped)),
	)
	span.SetStatus(codes.Ok, "")

	c.logger.Debug("directory scanned",
		zap.String("root", root),
		zap.String("extension", extension),
		zap.Int("files", len(result.Files)),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}

// walk finds matching files, pruning excluded directories, and returns
// them sorted by relative path.
func (c *Collector) walk(ctx context.Context, root, extension string, opts Options, result *Result) ([]candidate, error) {
	excluded := make(map[string]bool, len(opts.ExcludeDirs))
	for _, name := range opts.ExcludeDirs {
		excluded[name] = true
	}
	matcher := ignore.NewMatcher(opts.IgnorePatterns)

	var candidates []candidate
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("computing relative path: %w", relErr)
		}
		rel = filepath.ToSlash(rel)

		if walkErr != nil {
			// Unreadable directories are skipped like unreadable files.
			if path == root {
				return walkErr
			}
			c.logger.Error("failed to read directory entry", zap.String("path", rel), zap.Error(walkErr))
			result.Skipped = append(result.Skipped, SkippedFile{Path: rel, Reason: "unreadable", Err: walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if excluded[d.Name()] || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), extension) || matcher.Match(rel, false) {
			return nil
		}

		// Symlinked files may point outside root.
		if d.Type()&fs.ModeSymlink != 0 {
			c.logger.Debug("skipping symlink", zap.String("path", rel))
			result.Skipped = append(result.Skipped, SkippedFile{Path: rel, Reason: "symlink"})
			return nil
		}

		info, err := d.Info()
		if err != nil {
			c.logger.Error("failed to stat file", zap.String("path", rel), zap.Error(err))
			result.Skipped = append(result.Skipped, SkippedFile{Path: rel, Reason: "unreadable", Err: err})
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() > opts.MaxFileSize {
			c.logger.Warn("skipping file over size limit",
				zap.String("path", rel),
				zap.Int64("size", info.Size()),
				zap.Int64("max_file_size", opts.MaxFileSize))
			result.Skipped = append(result.Skipped, SkippedFile{Path: rel, Reason: "too large"})
			return nil
		}

		candidates = append(candidates, candidate{abs: path, rel: rel, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking file tree: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].rel < candidates[j].rel })
	return candidates, nil
}

// read loads candidates concurrently. Slots keep the sorted order no matter
// which read finishes first.
func (c *Collector) read(ctx context.Context, candidates []candidate, opts Options, result *Result) error {
	files := make([]*SourceFile, len(candidates))
	skipped := make([]*SkippedFile, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, cand := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			content, err := c.readFile(cand.abs)
			if err != nil {
				c.logger.Error("failed to read file", zap.String("path", cand.rel), zap.Error(err))
				skipped[i] = &SkippedFile{Path: cand.rel, Reason: "unreadable", Err: err}
				return nil
			}
			if !utf8.Valid(content) {
				c.logger.Warn("skipping file with invalid UTF-8", zap.String("path", cand.rel))
				skipped[i] = &SkippedFile{Path: cand.rel, Reason: "invalid utf-8"}
				return nil
			}

			files[i] = &SourceFile{
				Path:     cand.rel,
				Contents: string(content),
				Language: opts.Language,
				Size:     cand.size,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for i := range candidates {
		if files[i] != nil {
			result.Files = append(result.Files, *files[i])
		}
		if skipped[i] != nil {
			result.Skipped = append(result.Skipped, *skipped[i])
		}
	}
	return nil
}

func (o *Options) applyDefaults() error {
	if o.ExcludeDirs == nil {
		o.ExcludeDirs = DefaultExcludeDirs
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = defaultMaxFileSize
	}
	if o.MaxFileSize < 0 || o.MaxFileSize > maxMaxFileSize {
		return fmt.Errorf("max_file_size must be between 1 and %d bytes", maxMaxFileSize)
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	return nil
}

// validateRoot cleans dir, resolves it to an absolute path and checks that
// it is an existing directory.
func validateRoot(dir string) (string, error) {
	if dir == "" {
		return "", ErrEmptyPath
	}

	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDirectoryNotFound, abs)
		}
		return "", fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	return abs, nil
}
