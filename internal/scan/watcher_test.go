package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_PicksUpNewFile(t *testing.T) {
	root := writeProject(t)
	scanner, store := newTestScanner(t, root, Options{})
	_, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	applied := make(chan struct{}, 8)
	w, err := NewWatcher(scanner, store, nil, WatcherOptions{
		Debounce: 50 * time.Millisecond,
		OnApply:  func() { applied <- struct{}{} },
	})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	content := `export const added = () => {};`
	require.NoError(t, os.WriteFile(filepath.Join(root, "src/added.ts"), []byte(content), 0o644))

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not apply the change")
	}

	_, ok := store.GetNode("file:src/added.ts")
	assert.True(t, ok)
	_, ok = store.GetNode("function:src/added.ts:added")
	assert.True(t, ok)
}

func TestWatcher_RemovesDeletedFile(t *testing.T) {
	root := writeProject(t)
	scanner, store := newTestScanner(t, root, Options{})
	_, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	applied := make(chan struct{}, 8)
	w, err := NewWatcher(scanner, store, nil, WatcherOptions{
		Debounce: 50 * time.Millisecond,
		OnApply:  func() { applied <- struct{}{} },
	})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.Remove(filepath.Join(root, "src/engine.ts")))

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not apply the change")
	}

	_, ok := store.GetNode("file:src/engine.ts")
	assert.False(t, ok)
	_, ok = store.GetNode("class:src/engine.ts:Engine")
	assert.False(t, ok)
}
