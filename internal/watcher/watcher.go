// Package watcher re-runs ingestion when source files under a root change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/collector"
	"github.com/pavanjava/semantic-code-finder/internal/ignore"
)

// DefaultDebounce is the quiet period before a burst of events triggers a
// run.
const DefaultDebounce = 2 * time.Second

// Config selects what is watched.
type Config struct {
	Root      string
	Extension string

	// ExcludeDirs are directory names never watched. Nil selects
	// collector.DefaultExcludeDirs.
	ExcludeDirs []string

	// IgnorePatterns are ignore file globs relative to Root, as applied
	// by the collector.
	IgnorePatterns []string

	Debounce time.Duration

	// Initial triggers one run before the first event.
	Initial bool
}

// Watcher debounces file system events into calls of a trigger function.
type Watcher struct {
	cfg     Config
	trigger func(context.Context) error
	logger  *zap.Logger
	ignored *ignore.Matcher
	runs    atomic.Int64
}

// New creates a Watcher. trigger runs on the watcher goroutine, so events
// arriving during a run are batched into the next one.
func New(cfg Config, trigger func(context.Context) error, logger *zap.Logger) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, collector.ErrEmptyPath
	}
	if !strings.HasPrefix(cfg.Extension, ".") {
		return nil, fmt.Errorf("%w: %q", collector.ErrInvalidExtension, cfg.Extension)
	}
	if trigger == nil {
		return nil, errors.New("trigger is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.ExcludeDirs == nil {
		cfg.ExcludeDirs = collector.DefaultExcludeDirs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{cfg: cfg, trigger: trigger, logger: logger, ignored: ignore.NewMatcher(cfg.IgnorePatterns)}, nil
}

// Runs returns the number of completed trigger calls.
func (w *Watcher) Runs() int64 { return w.runs.Load() }

// Run watches until ctx is done. Trigger errors are logged and do not stop
// the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.cfg.Root); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}
	w.logger.Info("watching for changes",
		zap.String("root", w.cfg.Root),
		zap.String("extension", w.cfg.Extension),
		zap.Duration("debounce", w.cfg.Debounce))

	if w.cfg.Initial {
		w.fire(ctx)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && w.isWatchableDir(event.Name) {
				if err := w.addTree(fsw, event.Name); err != nil {
					w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if !pending {
				timer.Reset(w.cfg.Debounce)
				pending = true
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			pending = false
			w.fire(ctx)
		}
	}
}

func (w *Watcher) fire(ctx context.Context) {
	start := time.Now()
	err := w.trigger(ctx)
	w.runs.Add(1)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("re-ingest failed", zap.Error(err))
		}
		return
	}
	w.logger.Info("re-ingest completed", zap.Duration("elapsed", time.Since(start)))
}

// relevant reports whether event touches a file the collector would pick
// up: the watched extension, outside excluded and ignored paths.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if !strings.HasSuffix(filepath.Base(event.Name), w.cfg.Extension) {
		return false
	}
	rel, err := filepath.Rel(w.cfg.Root, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if dir := path.Dir(rel); dir != "." {
		segs := strings.Split(dir, "/")
		for i, d := range segs {
			if w.excluded(d) || w.ignored.Match(strings.Join(segs[:i+1], "/"), true) {
				return false
			}
		}
	}
	return !w.ignored.Match(rel, false)
}

func (w *Watcher) excluded(name string) bool {
	return slices.Contains(w.cfg.ExcludeDirs, name)
}

func (w *Watcher) isWatchableDir(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.IsDir() && !w.skipDir(name)
}

// skipDir reports whether a directory under Root is excluded or ignored.
func (w *Watcher) skipDir(name string) bool {
	if w.excluded(filepath.Base(name)) {
		return true
	}
	rel, err := filepath.Rel(w.cfg.Root, name)
	if err != nil || rel == "." {
		return false
	}
	return w.ignored.Match(filepath.ToSlash(rel), true)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			if name == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name != root && w.skipDir(name) {
			return filepath.SkipDir
		}
		return fsw.Add(name)
	})
}
