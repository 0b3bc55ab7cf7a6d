// Package store provides the cached flat item collection for planview.
//
// The store is the first cache tier: one snapshot of every parseable item
// record under the items directory. Invalidation is unconditional and
// whole-snapshot; there is no partial or diff invalidation at this tier.
package store

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/randalmurphal/planview/internal/item"
	"github.com/randalmurphal/planview/internal/record"
)

// Store loads and caches the flat planning item collection.
type Store struct {
	dir     string
	logger  *slog.Logger
	scanned func() // test hook, runs after a scan before the cache fill

	mu       sync.RWMutex
	gen      uint64 // bumped on every invalidation
	snapshot []*item.Item
	valid    bool

	group singleflight.Group
}

// New creates a store over the given items directory.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the items directory the store scans.
func (s *Store) Dir() string {
	return s.dir
}

// LoadAll returns the cached item snapshot, scanning the items directory on
// a cache miss. A parse failure on one record is logged and that record is
// excluded; it never aborts the load. Callers must not mutate the result.
func (s *Store) LoadAll() ([]*item.Item, error) {
	s.mu.RLock()
	if s.valid {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	gen := s.gen
	s.mu.RUnlock()

	// Collapse concurrent rebuilds into one scan; readers blocked here all
	// observe the same complete snapshot. The generation keys the flight and
	// guards the cache fill, so an invalidation landing mid-scan starts a
	// fresh scan for later callers and the stale result is never cached.
	v, err, _ := s.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		items, err := s.scan()
		if err != nil {
			return nil, err
		}
		if s.scanned != nil {
			s.scanned()
		}
		s.mu.Lock()
		if s.gen == gen {
			s.snapshot = items
			s.valid = true
		}
		s.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*item.Item), nil
}

// Invalidate clears the snapshot unconditionally.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.gen++
	s.snapshot = nil
	s.valid = false
	s.mu.Unlock()
}

// Get returns the item with the given ID from the current snapshot.
func (s *Store) Get(id string) (*item.Item, bool) {
	items, err := s.LoadAll()
	if err != nil {
		return nil, false
	}
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

// scan walks the items directory and parses every markdown record.
func (s *Store) scan() ([]*item.Item, error) {
	var items []*item.Item
	seen := make(map[string]string)

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.dir {
				return filepath.SkipAll
			}
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		it, err := record.LoadItem(path)
		if err != nil {
			s.logger.Warn("skipping unparseable record", "path", path, "error", err)
			return nil
		}
		if prev, dup := seen[it.ID]; dup {
			s.logger.Warn("skipping duplicate item id", "id", it.ID, "path", path, "first", prev)
			return nil
		}
		seen[it.ID] = path
		items = append(items, it)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	item.SortItems(items)
	return items, nil
}
