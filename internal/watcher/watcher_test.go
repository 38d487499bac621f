package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pavanjava/semantic-code-finder/internal/collector"
)

func TestRelevant(t *testing.T) {
	w, err := New(Config{Root: "/project", Extension: ".py"}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write source", fsnotify.Event{Name: "/project/app.py", Op: fsnotify.Write}, true},
		{"create nested source", fsnotify.Event{Name: "/project/pkg/mod.py", Op: fsnotify.Create}, true},
		{"remove source", fsnotify.Event{Name: "/project/old.py", Op: fsnotify.Remove}, true},
		{"rename source", fsnotify.Event{Name: "/project/moved.py", Op: fsnotify.Rename}, true},
		{"chmod ignored", fsnotify.Event{Name: "/project/app.py", Op: fsnotify.Chmod}, false},
		{"other extension", fsnotify.Event{Name: "/project/README.md", Op: fsnotify.Write}, false},
		{"excluded dir", fsnotify.Event{Name: "/project/node_modules/x/y.py", Op: fsnotify.Write}, false},
		{"venv", fsnotify.Event{Name: "/project/.venv/lib/site.py", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.event))
		})
	}
}

func TestRelevant_IgnorePatterns(t *testing.T) {
	w, err := New(Config{
		Root:           "/project",
		Extension:      ".py",
		IgnorePatterns: []string{"**/generated/**", "*_pb2.py"},
	}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		file string
		want bool
	}{
		{"plain source", "/project/app.py", true},
		{"ignored directory", "/project/generated/models.py", false},
		{"nested ignored directory", "/project/pkg/generated/models.py", false},
		{"ignored file glob", "/project/pkg/service_pb2.py", false},
		{"similar name kept", "/project/pkg/generator.py", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(fsnotify.Event{Name: tt.file, Op: fsnotify.Write}))
		})
	}
}

func TestNew_Validation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := New(Config{Extension: ".py"}, noop, nil)
	assert.ErrorIs(t, err, collector.ErrEmptyPath)

	_, err = New(Config{Root: "/p", Extension: "py"}, noop, nil)
	assert.ErrorIs(t, err, collector.ErrInvalidExtension)

	_, err = New(Config{Root: "/p", Extension: ".py"}, nil, nil)
	assert.Error(t, err)

	w, err := New(Config{Root: "/p", Extension: ".py"}, noop, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.cfg.Debounce)
	assert.Equal(t, collector.DefaultExcludeDirs, w.cfg.ExcludeDirs)
}

func startWatcher(t *testing.T, cfg Config, trigger func(context.Context) error) *Watcher {
	t.Helper()
	w, err := New(cfg, trigger, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return w
}

func TestRun_DebouncesBurst(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, Config{Root: root, Extension: ".py", Debounce: 150 * time.Millisecond}, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	// Give the watcher time to register the root.
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("x = 1\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRun_IgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, Config{Root: root, Extension: ".py", Debounce: 50 * time.Millisecond}, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("# notes\n"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestRun_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, Config{Root: root, Extension: ".py", Debounce: 50 * time.Millisecond}, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "mod.py"), []byte("y = 2\n"), 0o644))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestRun_InitialAndErrors(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	w := startWatcher(t, Config{Root: root, Extension: ".py", Debounce: 50 * time.Millisecond, Initial: true}, func(context.Context) error {
		calls.Add(1)
		return errors.New("store unavailable")
	})

	require.Eventually(t, func() bool { return w.Runs() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("x = 1\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 20*time.Millisecond)
}

func TestRun_MissingRoot(t *testing.T) {
	w, err := New(Config{Root: filepath.Join(t.TempDir(), "missing"), Extension: ".py"}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}
