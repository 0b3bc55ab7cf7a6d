// Package specref reads specification progress for planning items.
//
// An item may reference a specification record set: a directory holding a
// spec.md with its own declared status plus phase sub-records under phases/.
// This cache tier is independent of the item caches and is invalidated
// per-item: a change under one resolved specification location only evicts
// the entry of the item owning that location.
package specref

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/randalmurphal/planview/internal/item"
	"github.com/randalmurphal/planview/internal/record"
)

// Progress describes phase completion of a specification record set.
type Progress struct {
	CompletedPhases int         `json:"completed_phases"`
	TotalPhases     int         `json:"total_phases"`
	DeclaredStatus  item.Status `json:"declared_status"`
	InSync          bool        `json:"in_sync"`
}

// scan is the cached spec-side result: phase counts plus the declared
// status. InSync depends on the item's current status too, so it is never
// cached; it is recomputed on every read.
type scan struct {
	completed int
	total     int
	declared  item.Status
}

// Reader reads and caches specification progress per item.
type Reader struct {
	specsDir string
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]*scan  // item ID -> spec-side scan (nil results are cached too)
	owner map[string]string // resolved spec location -> owning item ID
}

// NewReader creates a reader over the given specifications directory.
func NewReader(specsDir string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		specsDir: specsDir,
		logger:   logger,
		cache:    make(map[string]*scan),
		owner:    make(map[string]string),
	}
}

// For returns the specification progress for an item, or nil when the item
// has no specification reference, the reference does not resolve, or its
// records fail to parse. Absence is never an error visible to the item.
//
// Only the spec-side scan is served from cache; the in-sync verdict is
// computed against the item status the caller holds right now, so a status
// change on the item side is reflected without any spec invalidation.
func (r *Reader) For(it *item.Item) *Progress {
	r.mu.RLock()
	sc, ok := r.cache[it.ID]
	r.mu.RUnlock()

	if !ok {
		var location string
		sc, location = r.read(it)

		r.mu.Lock()
		r.cache[it.ID] = sc
		if location != "" {
			r.owner[location] = it.ID
		}
		r.mu.Unlock()
	}

	if sc == nil {
		return nil
	}
	return &Progress{
		CompletedPhases: sc.completed,
		TotalPhases:     sc.total,
		DeclaredStatus:  sc.declared,
		InSync:          InSync(it.Status, sc.declared),
	}
}

// read resolves and scans an item's specification record set.
// Returns the scan (nil if absent) and the resolved location, if any.
func (r *Reader) read(it *item.Item) (*scan, string) {
	if !it.HasSpec() {
		return nil, ""
	}

	dir := filepath.Join(r.specsDir, it.Spec)
	specFile := filepath.Join(dir, "spec.md")

	f, err := record.Parse(specFile)
	if err != nil {
		r.logger.Debug("specification reference did not resolve", "id", it.ID, "spec", it.Spec, "error", err)
		// Keep the reverse index entry so a later fix under this location
		// invalidates the cached nil.
		return nil, dir
	}

	declared := item.StatusNotStarted
	if raw, ok := f.Get("status"); ok {
		if s := item.Status(raw); item.IsValidStatus(s) {
			declared = s
		}
	}

	completed, total := r.scanPhases(filepath.Join(dir, "phases"))

	return &scan{completed: completed, total: total, declared: declared}, dir
}

// scanPhases counts phase sub-records and how many declare completion.
func (r *Reader) scanPhases(dir string) (completed, total int) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		f, err := record.Parse(path)
		if err != nil {
			r.logger.Debug("skipping unparseable phase record", "path", path, "error", err)
			return nil
		}
		total++
		if raw, ok := f.Get("status"); ok && item.Status(raw) == item.StatusCompleted {
			completed++
		}
		return nil
	})
	return completed, total
}

// InSync reports whether a specification's declared status is consistent
// with the owning item's status. It is false ("out of sync") exactly when
// the declared status ranks strictly higher on the ordered scale.
func InSync(itemStatus, declared item.Status) bool {
	return declared.Rank() <= itemStatus.Rank()
}

// OwnerOf returns the item ID owning the specification location containing
// path, using the reverse index built alongside the cache.
func (r *Reader) OwnerOf(path string) (string, bool) {
	clean := filepath.Clean(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for location, id := range r.owner {
		if clean == location || strings.HasPrefix(clean, location+string(filepath.Separator)) {
			return id, true
		}
	}
	return "", false
}

// InvalidateLocation evicts the cache entry of the item owning the
// specification location containing path. Returns true if an entry was
// evicted.
func (r *Reader) InvalidateLocation(path string) bool {
	id, ok := r.OwnerOf(path)
	if !ok {
		return false
	}
	r.InvalidateItem(id)
	return true
}

// InvalidateItem evicts one item's cached specification progress.
func (r *Reader) InvalidateItem(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// Reset clears the whole cache and reverse index.
func (r *Reader) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]*scan)
	r.owner = make(map[string]string)
	r.mu.Unlock()
}
