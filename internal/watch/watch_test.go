package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/ignore"
)

const waitFor = 5 * time.Second

func startWatcher(t *testing.T, dir string, opts Options) *Watcher {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	w, err := New(dir, opts, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for change batch")
		return Event{}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), Options{}, nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "note.md")
	writeFile(t, file, "x")
	_, err = New(file, Options{}, nil)
	assert.Error(t, err)
}

func TestWatcher_DebouncesBatch(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Options{})

	writeFile(t, filepath.Join(dir, "b.md"), "one")
	writeFile(t, filepath.Join(dir, "a.md"), "two")
	writeFile(t, filepath.Join(dir, "a.md"), "three")
	writeFile(t, filepath.Join(dir, "image.png"), "binary")

	ev := nextEvent(t, w)
	assert.Equal(t, []string{"a.md", "b.md"}, ev.Paths)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestWatcher_NewDirectoriesAreWatched(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Options{})

	sub := filepath.Join(dir, "Projects")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(sub, "plan.md"), "plan")

	ev := nextEvent(t, w)
	assert.Contains(t, ev.Paths, "Projects/plan.md")
}

func TestWatcher_RespectsIgnoreRules(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "Inbox")
	require.NoError(t, os.MkdirAll(filepath.Join(inbox, ".trash"), 0o755))

	matcher, err := ignore.Compile([]string{".trash/", "draft-*.md"})
	require.NoError(t, err)
	w := startWatcher(t, inbox, Options{Root: root, Ignore: matcher})

	writeFile(t, filepath.Join(inbox, ".trash", "old.md"), "old")
	writeFile(t, filepath.Join(inbox, "draft-1.md"), "draft")
	writeFile(t, filepath.Join(inbox, "keep.md"), "keep")

	ev := nextEvent(t, w)
	assert.Equal(t, []string{"Inbox/keep.md"}, ev.Paths)
}

func TestWatcher_Removal(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "gone.md")
	writeFile(t, note, "bye")
	w := startWatcher(t, dir, Options{})

	require.NoError(t, os.Remove(note))
	ev := nextEvent(t, w)
	assert.Equal(t, []string{"gone.md"}, ev.Paths)
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	w := startWatcher(t, t.TempDir(), Options{})
	w.Stop()
	w.Stop()

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("events channel not closed after Stop")
	}
}

func TestWatcher_ContextCancel(t *testing.T) {
	w, err := New(t.TempDir(), Options{}, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestEmit_FullChannelKeepsBatch(t *testing.T) {
	w := &Watcher{events: make(chan Event, 1), logger: zap.NewNop()}
	pending := map[string]struct{}{"Inbox/a.md": {}}

	assert.True(t, w.emit(pending))
	assert.False(t, w.emit(pending), "second batch does not fit")
	assert.Len(t, pending, 1)
	assert.True(t, w.emit(map[string]struct{}{}), "empty batch needs no send")

	ev := <-w.events
	assert.Equal(t, []string{"Inbox/a.md"}, ev.Paths)
	assert.True(t, w.emit(pending))
}

func TestWatcher_SlowConsumerLosesNoPaths(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Options{Debounce: 50 * time.Millisecond})

	// Each write lands in its own batch; more batches than the buffer holds
	// pile up before anything is read.
	var want []string
	for i := 0; i < eventBuffer+2; i++ {
		name := fmt.Sprintf("note-%d.md", i)
		want = append(want, name)
		writeFile(t, filepath.Join(dir, name), "x")
		time.Sleep(200 * time.Millisecond)
	}

	seen := make(map[string]bool)
	deadline := time.After(waitFor)
	for len(seen) < len(want) {
		select {
		case ev := <-w.Events():
			for _, p := range ev.Paths {
				seen[p] = true
			}
		case <-deadline:
			t.Fatalf("saw %d of %d paths", len(seen), len(want))
		}
	}
	for _, p := range want {
		assert.True(t, seen[p], p)
	}
}
