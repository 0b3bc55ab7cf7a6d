// Package engine ties the planview cache tiers together.
//
// An Engine owns all mutable cache state: the raw item snapshot, the
// per-view hierarchy trees, the per-item progress cache, and the per-item
// specification progress cache. It is constructed once per host session and
// passed by handle to all callers; there are no package-level singletons.
package engine

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	pverrors "github.com/randalmurphal/planview/internal/errors"
	"github.com/randalmurphal/planview/internal/events"
	"github.com/randalmurphal/planview/internal/hierarchy"
	"github.com/randalmurphal/planview/internal/item"
	"github.com/randalmurphal/planview/internal/progress"
	"github.com/randalmurphal/planview/internal/propagate"
	"github.com/randalmurphal/planview/internal/specref"
	"github.com/randalmurphal/planview/internal/store"
	"github.com/randalmurphal/planview/internal/transition"
)

// ViewKey distinguishes one cached hierarchy build from another.
// The same item may be a root in one view and a child in another.
type ViewKey string

// ViewAll is the hierarchy over the whole item collection.
const ViewAll ViewKey = "all"

// ViewStatus is the hierarchy over one effective-status group.
func ViewStatus(s item.Status) ViewKey {
	return ViewKey("status:" + string(s))
}

// StatusGroup is a virtual grouping of items by effective status.
// Never persisted; materialized lazily as a filter over the collection.
type StatusGroup struct {
	Status item.Status `json:"status"`
	Label  string      `json:"label"`
	Count  int         `json:"count"`
}

// Options configures an Engine.
type Options struct {
	// WorkDir is the project root containing the .planview directory.
	WorkDir string
	// ItemsDir and SpecsDir override the default record locations.
	ItemsDir string
	SpecsDir string
	// Markers are bulk-operation marker locations watched by the coalescer.
	Markers []string

	Logger    *slog.Logger
	Publisher events.Publisher

	// Debounce is the quiet period after a change notification before a
	// refresh cycle runs (default 300ms).
	Debounce time.Duration
	// BulkDebounce is the slower settle period for bulk markers (default 2s).
	BulkDebounce time.Duration
	// BulkTimeout forces a refresh if a bulk marker never clears (default 30s).
	BulkTimeout time.Duration
}

// Engine is the hierarchical status cache and propagation engine.
type Engine struct {
	logger    *slog.Logger
	publisher events.Publisher

	itemsDir string
	specsDir string
	markers  []string

	debounce     time.Duration
	bulkDebounce time.Duration
	bulkTimeout  time.Duration

	store *store.Store     // tier 1: raw item snapshot
	specs *specref.Reader  // tier 4: per-item specification progress
	prop  *propagate.Engine
	now   func() time.Time

	// Tiers 2 and 3: per-view hierarchies plus the per-item progress cache.
	// They share a lifetime and clear together.
	mu            sync.RWMutex
	gen           uint64 // bumped on every view invalidation
	trees         map[ViewKey][]*hierarchy.Node
	progressByID  map[string]*progress.Info
	progressValid bool
	viewGroup     singleflight.Group

	// Refresh serialization: see coalesce.go.
	refreshMu   sync.Mutex
	reqMu       sync.Mutex
	refreshCh   chan refreshRequest
	refreshStop chan struct{} // closed when the owning coalescer exits
}

// New creates an engine over a project directory.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}

	itemsDir := opts.ItemsDir
	if itemsDir == "" {
		itemsDir = filepath.Join(opts.WorkDir, item.PlanviewDir, item.ItemsDir)
	}
	specsDir := opts.SpecsDir
	if specsDir == "" {
		specsDir = filepath.Join(opts.WorkDir, item.PlanviewDir, item.SpecsDir)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	bulkDebounce := opts.BulkDebounce
	if bulkDebounce <= 0 {
		bulkDebounce = 2 * time.Second
	}
	bulkTimeout := opts.BulkTimeout
	if bulkTimeout <= 0 {
		bulkTimeout = 30 * time.Second
	}

	return &Engine{
		logger:       logger,
		publisher:    publisher,
		itemsDir:     itemsDir,
		specsDir:     specsDir,
		markers:      opts.Markers,
		debounce:     debounce,
		bulkDebounce: bulkDebounce,
		bulkTimeout:  bulkTimeout,
		store:        store.New(itemsDir, logger),
		specs:        specref.NewReader(specsDir, logger),
		prop:         propagate.New(logger),
		now:          time.Now,
		trees:        make(map[ViewKey][]*hierarchy.Node),
		progressByID: make(map[string]*progress.Info),
	}
}

// ItemsDir returns the watched items directory.
func (e *Engine) ItemsDir() string { return e.itemsDir }

// SpecsDir returns the watched specifications directory.
func (e *Engine) SpecsDir() string { return e.specsDir }

// Items returns the current item snapshot.
func (e *Engine) Items() ([]*item.Item, error) {
	return e.store.LoadAll()
}

// Item returns one item by ID.
func (e *Engine) Item(id string) (*item.Item, error) {
	it, ok := e.store.Get(id)
	if !ok {
		return nil, pverrors.New(pverrors.CodeItemNotFound, "item "+id+" not found")
	}
	return it, nil
}

// StatusGroups returns items grouped by effective status, in scale order
// with archived last. Groups are computed on demand, never cached.
func (e *Engine) StatusGroups() ([]StatusGroup, error) {
	items, err := e.store.LoadAll()
	if err != nil {
		return nil, err
	}

	counts := make(map[item.Status]int)
	for _, it := range items {
		counts[item.EffectiveStatus(it)]++
	}

	groups := make([]StatusGroup, 0, len(item.ValidStatuses()))
	for _, s := range item.ValidStatuses() {
		groups = append(groups, StatusGroup{Status: s, Label: s.Label(), Count: counts[s]})
	}
	return groups, nil
}

// ItemsInGroup returns the items whose effective status matches s.
func (e *Engine) ItemsInGroup(s item.Status) ([]*item.Item, error) {
	items, err := e.store.LoadAll()
	if err != nil {
		return nil, err
	}
	var out []*item.Item
	for _, it := range items {
		if item.EffectiveStatus(it) == s {
			out = append(out, it)
		}
	}
	return out, nil
}

// Hierarchy returns the cached tree for a view, building it lazily.
func (e *Engine) Hierarchy(key ViewKey) ([]*hierarchy.Node, error) {
	e.mu.RLock()
	if roots, ok := e.trees[key]; ok && e.progressValid {
		e.mu.RUnlock()
		return roots, nil
	}
	e.mu.RUnlock()

	// All-or-nothing per-tier rebuild: concurrent readers collapse into one
	// build and never observe a half-built tree.
	v, err, _ := e.viewGroup.Do(string(key), func() (any, error) {
		return e.buildView(key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*hierarchy.Node), nil
}

// buildView builds one view's tree and, if needed, the full progress cache.
// The progress tier is rebuilt once in full the first time any hierarchy is
// requested after invalidation, not eagerly at invalidation time.
func (e *Engine) buildView(key ViewKey) ([]*hierarchy.Node, error) {
	e.mu.RLock()
	gen := e.gen
	e.mu.RUnlock()

	items, err := e.store.LoadAll()
	if err != nil {
		return nil, err
	}

	subset, err := e.viewSubset(key, items)
	if err != nil {
		return nil, err
	}
	roots := hierarchy.Build(subset)

	e.mu.Lock()
	// An invalidation landed while building: serve the result but do not
	// cache it against the new generation.
	if e.gen == gen {
		e.trees[key] = roots
		if !e.progressValid {
			e.rebuildProgressLocked(items)
		}
	}
	e.mu.Unlock()

	return roots, nil
}

// viewSubset selects the item subset for a view key.
func (e *Engine) viewSubset(key ViewKey, items []*item.Item) ([]*item.Item, error) {
	if key == ViewAll {
		return items, nil
	}
	s, ok := parseStatusKey(key)
	if !ok {
		return nil, pverrors.New(pverrors.CodeRefUnresolved, "unknown view key "+string(key))
	}
	var subset []*item.Item
	for _, it := range items {
		if item.EffectiveStatus(it) == s {
			subset = append(subset, it)
		}
	}
	return subset, nil
}

func parseStatusKey(key ViewKey) (item.Status, bool) {
	const prefix = "status:"
	k := string(key)
	if len(k) <= len(prefix) || k[:len(prefix)] != prefix {
		return "", false
	}
	s := item.Status(k[len(prefix):])
	if !item.IsValidStatus(s) {
		return "", false
	}
	return s, true
}

// rebuildProgressLocked recomputes the whole progress cache from the full
// hierarchy. Caller holds e.mu.
func (e *Engine) rebuildProgressLocked(items []*item.Item) {
	full, ok := e.trees[ViewAll]
	if !ok {
		full = hierarchy.Build(items)
		e.trees[ViewAll] = full
	}

	byID := make(map[string]*progress.Info)
	hierarchy.Walk(full, func(n *hierarchy.Node) {
		if info := progress.Calculate(n); info != nil {
			byID[n.Item.ID] = info
		}
	})
	e.progressByID = byID
	e.progressValid = true
}

// ChildrenOf returns the direct children of an item in the full view.
func (e *Engine) ChildrenOf(id string) ([]*item.Item, error) {
	roots, err := e.Hierarchy(ViewAll)
	if err != nil {
		return nil, err
	}
	n := hierarchy.Find(roots, id)
	if n == nil {
		return nil, pverrors.New(pverrors.CodeItemNotFound, "item "+id+" not found")
	}
	children := make([]*item.Item, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, c.Item)
	}
	return children, nil
}

// ProgressOf returns direct-child completion for an item, or nil for items
// without children.
func (e *Engine) ProgressOf(id string) (*progress.Info, error) {
	// Any hierarchy read fills the progress tier; ensure one happened.
	// Under churn the build may race an invalidation, so retry briefly.
	for range 3 {
		roots, err := e.Hierarchy(ViewAll)
		if err != nil {
			return nil, err
		}
		e.mu.RLock()
		if e.progressValid {
			info := e.progressByID[id]
			e.mu.RUnlock()
			return info, nil
		}
		e.mu.RUnlock()

		// Cache skipped: answer from the tree we were handed.
		if n := hierarchy.Find(roots, id); n != nil {
			return progress.Calculate(n), nil
		}
	}
	return nil, nil
}

// SpecProgressOf returns specification progress for an item, or nil when the
// item has no specification reference or it cannot be read.
func (e *Engine) SpecProgressOf(id string) (*specref.Progress, error) {
	it, err := e.Item(id)
	if err != nil {
		return nil, err
	}
	return e.specs.For(it), nil
}

// IsValidTransition reports whether from -> to is an allowed interactive
// transition.
func (e *Engine) IsValidTransition(from, to item.Status) bool {
	return transition.IsValid(from, to)
}

// ApplyTransition performs a validated interactive status transition on an
// item's record. The write re-enters the pipeline as an ordinary change
// notification; no cache is patched here.
func (e *Engine) ApplyTransition(id string, to item.Status) error {
	it, err := e.Item(id)
	if err != nil {
		return err
	}
	updated, err := transition.Apply(it.Path, to, e.now())
	if err != nil {
		return err
	}
	e.publisher.Publish(events.NewEvent(events.EventItemChanged, updated.ID, map[string]any{
		"status": updated.Status,
	}))
	return nil
}

// Subscribe returns a channel of engine events. Use events.GlobalItemID to
// observe everything, including view-changed re-render signals.
func (e *Engine) Subscribe(itemID string) <-chan events.Event {
	return e.publisher.Subscribe(itemID)
}

// Unsubscribe removes a subscription channel.
func (e *Engine) Unsubscribe(itemID string, ch <-chan events.Event) {
	e.publisher.Unsubscribe(itemID, ch)
}

// invalidateViews clears the hierarchy and progress tiers together.
func (e *Engine) invalidateViews() {
	e.mu.Lock()
	e.gen++
	e.trees = make(map[ViewKey][]*hierarchy.Node)
	e.progressByID = make(map[string]*progress.Info)
	e.progressValid = false
	e.mu.Unlock()
}

// InvalidateAll clears the item, hierarchy, and progress tiers.
// The specification tier is independent and invalidated per item.
func (e *Engine) InvalidateAll() {
	e.store.Invalidate()
	e.invalidateViews()
}
