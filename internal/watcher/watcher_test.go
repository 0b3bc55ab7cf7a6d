package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	workDir  string
	itemsDir string
	specsDir string
	marker   string
	w        *Watcher
	cancel   context.CancelFunc
}

func setup(t *testing.T) *fixture {
	t.Helper()
	workDir := t.TempDir()
	itemsDir := filepath.Join(workDir, ".planview", "items")
	specsDir := filepath.Join(workDir, ".planview", "specs")
	marker := filepath.Join(workDir, ".git", "index.lock")

	require.NoError(t, os.MkdirAll(itemsDir, 0755))
	require.NoError(t, os.MkdirAll(specsDir, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, ".git"), 0755))

	w, err := New(&Config{
		ItemsDir: itemsDir,
		SpecsDir: specsDir,
		Markers:  []string{marker},
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})

	// Give the watch registrations a moment to land.
	time.Sleep(100 * time.Millisecond)

	return &fixture{workDir: workDir, itemsDir: itemsDir, specsDir: specsDir, marker: marker, w: w, cancel: cancel}
}

// waitNotification receives until fn matches or the timeout elapses.
func waitNotification(t *testing.T, ch <-chan Notification, fn func(Notification) bool) (Notification, bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-ch:
			if fn(n) {
				return n, true
			}
		case <-deadline:
			return Notification{}, false
		}
	}
}

func TestNew(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("requires items directory", func(t *testing.T) {
		_, err := New(&Config{})
		assert.Error(t, err)
	})

	t.Run("creates watcher", func(t *testing.T) {
		w, err := New(&Config{ItemsDir: t.TempDir(), Logger: testLogger()})
		require.NoError(t, err)
		assert.NotNil(t, w)
		require.NoError(t, w.Stop())
	})
}

func TestItemChanges(t *testing.T) {
	t.Run("created record is classified as item", func(t *testing.T) {
		f := setup(t)

		path := filepath.Join(f.itemsDir, "STOR-001.md")
		require.NoError(t, os.WriteFile(path, []byte("---\nid: STOR-001\n---\n"), 0644))

		n, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path
		})
		require.True(t, ok, "expected a notification for %s", path)
		assert.Equal(t, ClassItem, n.Class)
	})

	t.Run("unchanged rewrite is suppressed", func(t *testing.T) {
		f := setup(t)

		path := filepath.Join(f.itemsDir, "STOR-001.md")
		content := []byte("---\nid: STOR-001\nstatus: ready\n---\n")
		require.NoError(t, os.WriteFile(path, content, 0644))

		_, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path
		})
		require.True(t, ok)

		// Same bytes again: the content hash suppresses the event.
		require.NoError(t, os.WriteFile(path, content, 0644))
		_, ok = waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path
		})
		assert.False(t, ok, "identical content should not notify")

		// Different bytes notify again.
		require.NoError(t, os.WriteFile(path, []byte("---\nid: STOR-001\nstatus: blocked\n---\n"), 0644))
		_, ok = waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path
		})
		assert.True(t, ok, "changed content should notify")
	})

	t.Run("non-markdown files are ignored", func(t *testing.T) {
		f := setup(t)

		path := filepath.Join(f.itemsDir, "scratch.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

		_, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path
		})
		assert.False(t, ok)
	})

	t.Run("records in new subdirectories are seen", func(t *testing.T) {
		f := setup(t)

		subDir := filepath.Join(f.itemsDir, "epic-001")
		require.NoError(t, os.MkdirAll(subDir, 0755))
		time.Sleep(200 * time.Millisecond) // let the new watch land

		path := filepath.Join(subDir, "STOR-010.md")
		require.NoError(t, os.WriteFile(path, []byte("---\nid: STOR-010\n---\n"), 0644))

		n, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path
		})
		require.True(t, ok)
		assert.Equal(t, ClassItem, n.Class)
	})
}

func TestSpecChanges(t *testing.T) {
	f := setup(t)

	specDir := filepath.Join(f.specsDir, "auth-flow")
	require.NoError(t, os.MkdirAll(specDir, 0755))
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(specDir, "spec.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nstatus: ready\n---\n"), 0644))

	n, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
		return n.Path == path
	})
	require.True(t, ok)
	assert.Equal(t, ClassSpec, n.Class)
}

func TestDeleteVerification(t *testing.T) {
	t.Run("real deletion is reported after verification", func(t *testing.T) {
		f := setup(t)

		path := filepath.Join(f.itemsDir, "STOR-001.md")
		require.NoError(t, os.WriteFile(path, []byte("---\nid: STOR-001\n---\n"), 0644))
		_, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path
		})
		require.True(t, ok)

		require.NoError(t, os.Remove(path))

		n, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path && n.Kind == Deleted
		})
		require.True(t, ok, "expected a verified delete notification")
		assert.Equal(t, ClassItem, n.Class)
	})

	t.Run("quick replace is not reported as deletion", func(t *testing.T) {
		f := setup(t)

		path := filepath.Join(f.itemsDir, "STOR-001.md")
		require.NoError(t, os.WriteFile(path, []byte("---\nid: STOR-001\nstatus: ready\n---\n"), 0644))
		_, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path
		})
		require.True(t, ok)

		// Remove and immediately recreate, like a rename-based save.
		require.NoError(t, os.Remove(path))
		require.NoError(t, os.WriteFile(path, []byte("---\nid: STOR-001\nstatus: blocked\n---\n"), 0644))

		_, deleted := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
			return n.Path == path && n.Kind == Deleted
		})
		assert.False(t, deleted, "replace within the verify window must not report a delete")
	})
}

func TestMarkerEvents(t *testing.T) {
	f := setup(t)

	require.NoError(t, os.WriteFile(f.marker, []byte(""), 0644))

	n, ok := waitNotification(t, f.w.Notifications(), func(n Notification) bool {
		return n.Class == ClassMarker
	})
	require.True(t, ok, "expected a marker notification")
	assert.Equal(t, filepath.Clean(f.marker), n.Path)
	assert.Equal(t, Created, n.Kind)

	require.NoError(t, os.Remove(f.marker))

	n, ok = waitNotification(t, f.w.Notifications(), func(n Notification) bool {
		return n.Class == ClassMarker && n.Kind == Deleted
	})
	require.True(t, ok, "expected a marker removal notification")
}

func TestStop(t *testing.T) {
	w, err := New(&Config{ItemsDir: t.TempDir(), Logger: testLogger()})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	// Stop is idempotent.
	require.NoError(t, w.Stop())

	select {
	case <-w.Done():
	default:
		t.Error("Done channel should be closed after Stop")
	}
}
