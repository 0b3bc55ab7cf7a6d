package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pverrors "github.com/randalmurphal/planview/internal/errors"
	"github.com/randalmurphal/planview/internal/events"
	"github.com/randalmurphal/planview/internal/item"
	"github.com/randalmurphal/planview/internal/record"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupProject(t *testing.T) string {
	t.Helper()
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, ".planview", "items"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, ".planview", "specs"), 0755))
	return workDir
}

func writeItemRecord(t *testing.T, workDir, relPath, id, parent string, status item.Status) string {
	t.Helper()
	path := filepath.Join(workDir, ".planview", "items", relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	content := fmt.Sprintf("---\nid: %s\ntitle: Item %s\nstatus: %s\n", id, id, status)
	if parent != "" {
		content += fmt.Sprintf("parent: %s\n", parent)
	}
	content += "---\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestEngine(t *testing.T, workDir string) *Engine {
	t.Helper()
	return New(Options{
		WorkDir:   workDir,
		Logger:    testLogger(),
		Publisher: events.NewMemoryPublisher(),
	})
}

func TestItems(t *testing.T) {
	workDir := setupProject(t)
	writeItemRecord(t, workDir, "EPIC-001.md", "EPIC-001", "", item.StatusInProgress)
	writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "EPIC-001", item.StatusReady)

	eng := newTestEngine(t, workDir)

	items, err := eng.Items()
	require.NoError(t, err)
	assert.Len(t, items, 2)

	it, err := eng.Item("STOR-001")
	require.NoError(t, err)
	assert.Equal(t, item.StatusReady, it.Status)
	assert.Equal(t, "EPIC-001", it.Parent)

	_, err = eng.Item("STOR-999")
	require.Error(t, err)
	assert.True(t, pverrors.HasCode(err, pverrors.CodeItemNotFound))
}

func TestStatusGroups(t *testing.T) {
	workDir := setupProject(t)
	writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "", item.StatusReady)
	writeItemRecord(t, workDir, "STOR-002.md", "STOR-002", "", item.StatusReady)
	writeItemRecord(t, workDir, "STOR-003.md", "STOR-003", "", item.StatusBlocked)
	writeItemRecord(t, workDir, "archive/STOR-004.md", "STOR-004", "", item.StatusCompleted)

	eng := newTestEngine(t, workDir)

	groups, err := eng.StatusGroups()
	require.NoError(t, err)
	require.Len(t, groups, len(item.ValidStatuses()))

	byStatus := make(map[item.Status]StatusGroup)
	for _, g := range groups {
		byStatus[g.Status] = g
	}
	assert.Equal(t, 2, byStatus[item.StatusReady].Count)
	assert.Equal(t, 1, byStatus[item.StatusBlocked].Count)
	// Effective status: the completed record under archive/ groups as archived.
	assert.Equal(t, 1, byStatus[item.StatusArchived].Count)
	assert.Equal(t, 0, byStatus[item.StatusCompleted].Count)

	// Scale order with archived last.
	assert.Equal(t, item.StatusNotStarted, groups[0].Status)
	assert.Equal(t, item.StatusArchived, groups[len(groups)-1].Status)

	ready, err := eng.ItemsInGroup(item.StatusReady)
	require.NoError(t, err)
	assert.Len(t, ready, 2)
}

func TestHierarchy(t *testing.T) {
	t.Run("builds and caches the full view", func(t *testing.T) {
		workDir := setupProject(t)
		writeItemRecord(t, workDir, "EPIC-001.md", "EPIC-001", "", item.StatusInProgress)
		writeItemRecord(t, workDir, "FEAT-001.md", "FEAT-001", "EPIC-001", item.StatusInProgress)
		writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "FEAT-001", item.StatusReady)

		eng := newTestEngine(t, workDir)

		roots, err := eng.Hierarchy(ViewAll)
		require.NoError(t, err)
		require.Len(t, roots, 1)
		assert.Equal(t, "EPIC-001", roots[0].Item.ID)

		// A second read returns the same cached tree.
		again, err := eng.Hierarchy(ViewAll)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%p", roots[0]), fmt.Sprintf("%p", again[0]))
	})

	t.Run("status views subset by effective status", func(t *testing.T) {
		workDir := setupProject(t)
		writeItemRecord(t, workDir, "FEAT-001.md", "FEAT-001", "", item.StatusInProgress)
		writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "FEAT-001", item.StatusReady)
		writeItemRecord(t, workDir, "STOR-002.md", "STOR-002", "FEAT-001", item.StatusInProgress)

		eng := newTestEngine(t, workDir)

		roots, err := eng.Hierarchy(ViewStatus(item.StatusReady))
		require.NoError(t, err)
		// STOR-001's parent is not in the subset, so it roots there.
		require.Len(t, roots, 1)
		assert.Equal(t, "STOR-001", roots[0].Item.ID)
		assert.Empty(t, roots[0].Children)
	})

	t.Run("rejects unknown view keys", func(t *testing.T) {
		eng := newTestEngine(t, setupProject(t))

		_, err := eng.Hierarchy(ViewKey("status:done"))
		require.Error(t, err)
		assert.True(t, pverrors.HasCode(err, pverrors.CodeRefUnresolved))
	})

	t.Run("invalidation rebuilds from disk", func(t *testing.T) {
		workDir := setupProject(t)
		writeItemRecord(t, workDir, "FEAT-001.md", "FEAT-001", "", item.StatusInProgress)

		eng := newTestEngine(t, workDir)

		roots, err := eng.Hierarchy(ViewAll)
		require.NoError(t, err)
		require.Len(t, roots, 1)

		writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "FEAT-001", item.StatusReady)
		eng.InvalidateAll()

		roots, err = eng.Hierarchy(ViewAll)
		require.NoError(t, err)
		require.Len(t, roots, 1)
		require.Len(t, roots[0].Children, 1)
		assert.Equal(t, "STOR-001", roots[0].Children[0].Item.ID)
	})
}

func TestProgressOf(t *testing.T) {
	workDir := setupProject(t)
	writeItemRecord(t, workDir, "FEAT-001.md", "FEAT-001", "", item.StatusInProgress)
	writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "FEAT-001", item.StatusCompleted)
	writeItemRecord(t, workDir, "STOR-002.md", "STOR-002", "FEAT-001", item.StatusInProgress)

	eng := newTestEngine(t, workDir)

	info, err := eng.ProgressOf("FEAT-001")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 1, info.Completed)
	assert.Equal(t, 2, info.Total)
	assert.Equal(t, 50, info.Percentage)
	assert.Equal(t, "(1/2)", info.Display)

	// Leaves have no progress.
	info, err = eng.ProgressOf("STOR-001")
	require.NoError(t, err)
	assert.Nil(t, info)

	// Progress follows the records across invalidation.
	require.NoError(t, record.UpdateStatus(
		filepath.Join(workDir, ".planview", "items", "STOR-002.md"),
		item.StatusCompleted, time.Now()))
	eng.InvalidateAll()

	info, err = eng.ProgressOf("FEAT-001")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 2, info.Completed)
	assert.Equal(t, 100, info.Percentage)
}

func TestChildrenOf(t *testing.T) {
	workDir := setupProject(t)
	writeItemRecord(t, workDir, "FEAT-001.md", "FEAT-001", "", item.StatusInProgress)
	writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "FEAT-001", item.StatusReady)
	writeItemRecord(t, workDir, "STOR-002.md", "STOR-002", "FEAT-001", item.StatusReady)

	eng := newTestEngine(t, workDir)

	children, err := eng.ChildrenOf("FEAT-001")
	require.NoError(t, err)
	require.Len(t, children, 2)

	children, err = eng.ChildrenOf("STOR-001")
	require.NoError(t, err)
	assert.Empty(t, children)

	_, err = eng.ChildrenOf("STOR-999")
	require.Error(t, err)
	assert.True(t, pverrors.HasCode(err, pverrors.CodeItemNotFound))
}

func TestSpecProgressOf(t *testing.T) {
	workDir := setupProject(t)
	specDir := filepath.Join(workDir, ".planview", "specs", "auth-flow")
	require.NoError(t, os.MkdirAll(filepath.Join(specDir, "phases"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "spec.md"),
		[]byte("---\nstatus: completed\n---\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "phases", "phase-01.md"),
		[]byte("---\nstatus: completed\n---\n"), 0644))

	path := filepath.Join(workDir, ".planview", "items", "FEAT-001.md")
	require.NoError(t, os.WriteFile(path,
		[]byte("---\nid: FEAT-001\ntitle: Auth\nstatus: ready\nspec: auth-flow\n---\n"), 0644))

	eng := newTestEngine(t, workDir)

	prog, err := eng.SpecProgressOf("FEAT-001")
	require.NoError(t, err)
	require.NotNil(t, prog)
	assert.Equal(t, 1, prog.CompletedPhases)
	assert.Equal(t, 1, prog.TotalPhases)
	assert.Equal(t, item.StatusCompleted, prog.DeclaredStatus)
	// Spec declares completed while the item is only ready.
	assert.False(t, prog.InSync)
}

func TestSpecProgressFollowsItemStatus(t *testing.T) {
	workDir := setupProject(t)
	specDir := filepath.Join(workDir, ".planview", "specs", "auth-flow")
	require.NoError(t, os.MkdirAll(specDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "spec.md"),
		[]byte("---\nstatus: completed\n---\n"), 0644))

	path := filepath.Join(workDir, ".planview", "items", "FEAT-001.md")
	require.NoError(t, os.WriteFile(path,
		[]byte("---\nid: FEAT-001\ntitle: Auth\nstatus: in-progress\nspec: auth-flow\n---\n"), 0644))

	eng := newTestEngine(t, workDir)

	prog, err := eng.SpecProgressOf("FEAT-001")
	require.NoError(t, err)
	require.NotNil(t, prog)
	require.False(t, prog.InSync)

	// The item catches up to the declared status. No change happened under
	// the spec location, so the spec cache entry stays put; the in-sync
	// verdict still has to follow the item.
	require.NoError(t, eng.ApplyTransition("FEAT-001", item.StatusCompleted))
	eng.Refresh()

	prog, err = eng.SpecProgressOf("FEAT-001")
	require.NoError(t, err)
	require.NotNil(t, prog)
	assert.True(t, prog.InSync)
}

func TestApplyTransition(t *testing.T) {
	t.Run("valid transition persists and publishes", func(t *testing.T) {
		workDir := setupProject(t)
		path := writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "", item.StatusReady)

		eng := newTestEngine(t, workDir)
		sub := eng.Subscribe("STOR-001")

		require.NoError(t, eng.ApplyTransition("STOR-001", item.StatusInProgress))

		f, err := record.Parse(path)
		require.NoError(t, err)
		v, _ := f.Get("status")
		assert.Equal(t, "in-progress", v)

		select {
		case ev := <-sub:
			assert.Equal(t, events.EventItemChanged, ev.Type)
			assert.Equal(t, "STOR-001", ev.ItemID)
		case <-time.After(100 * time.Millisecond):
			t.Error("expected an item-changed event")
		}
	})

	t.Run("invalid transition has no side effect", func(t *testing.T) {
		workDir := setupProject(t)
		path := writeItemRecord(t, workDir, "STOR-001.md", "STOR-001", "", item.StatusReady)
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		eng := newTestEngine(t, workDir)

		err = eng.ApplyTransition("STOR-001", item.StatusCompleted)
		require.Error(t, err)
		assert.True(t, pverrors.HasCode(err, pverrors.CodeTransitionInvalid))

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("unknown item", func(t *testing.T) {
		eng := newTestEngine(t, setupProject(t))
		err := eng.ApplyTransition("STOR-999", item.StatusReady)
		require.Error(t, err)
		assert.True(t, pverrors.HasCode(err, pverrors.CodeItemNotFound))
	})
}

func TestIsValidTransition(t *testing.T) {
	eng := newTestEngine(t, setupProject(t))

	assert.True(t, eng.IsValidTransition(item.StatusReady, item.StatusInProgress))
	assert.False(t, eng.IsValidTransition(item.StatusReady, item.StatusCompleted))
	assert.False(t, eng.IsValidTransition(item.StatusArchived, item.StatusReady))
}
