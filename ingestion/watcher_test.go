package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "frameworks", "a.md"), "a")

	var calls atomic.Int32
	w, err := NewWatcher(DefaultSources(root), 100*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, w.Watched())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := range 3 {
		writeFile(t, filepath.Join(root, "frameworks", "a.md"), "edit "+string(rune('0'+i)))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a burst of writes triggers one rebuild")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates"), 0755))

	var calls atomic.Int32
	w, err := NewWatcher(DefaultSources(root), 50*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeFile(t, filepath.Join(root, "templates", "notes.swp"), "x")
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())

	writeFile(t, filepath.Join(root, "templates", "canvas.md"), "x")
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "benchmarks"), 0755))

	var calls atomic.Int32
	w, err := NewWatcher(DefaultSources(root), 50*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "benchmarks", "saas"), 0755))
	assert.Eventually(t, func() bool { return w.Watched() == 2 }, 2*time.Second, 20*time.Millisecond)
}
