// Package watcher provides file system watching for planview record changes.
// It monitors the items and specs directories plus a small set of bulk
// operation marker locations, and emits classified notifications on a
// channel consumed by the engine's change coalescer.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Class identifies which watch set a notification belongs to.
type Class int

const (
	// ClassItem is a change under the items directory.
	ClassItem Class = iota
	// ClassSpec is a change under the specs directory.
	ClassSpec
	// ClassMarker is a change to a bulk operation marker location.
	ClassMarker
)

// Kind is the change kind reported to the coalescer.
type Kind string

const (
	Created  Kind = "created"
	Modified Kind = "modified"
	Deleted  Kind = "deleted"
)

// Notification is one classified change event.
type Notification struct {
	Path  string
	Kind  Kind
	Class Class
}

// deleteVerifyDelay is how long to wait before confirming a removal.
// fsnotify reports Remove for renames, atomic saves, and git checkouts;
// the file is often back within milliseconds.
const deleteVerifyDelay = 100 * time.Millisecond

// Config configures the file watcher.
type Config struct {
	ItemsDir string
	SpecsDir string
	// Markers are bulk-operation marker locations (e.g. .git/index.lock).
	// Their parent directories are watched so marker creation is seen.
	Markers []string
	Logger  *slog.Logger
	// BufferSize is the notification channel capacity (default: 256).
	BufferSize int
}

// Watcher monitors the items and specs directories for record changes.
type Watcher struct {
	itemsDir string
	specsDir string
	markers  map[string]bool
	logger   *slog.Logger

	fsWatcher *fsnotify.Watcher
	notify    chan Notification

	// Content hashing to suppress no-op writes
	hashes   map[string]string
	hashesMu sync.Mutex

	// Pending delete verifications, keyed by path
	deletes   map[string]*time.Timer
	deletesMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new file watcher.
func New(cfg *Config) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.ItemsDir == "" {
		return nil, fmt.Errorf("items directory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	markers := make(map[string]bool, len(cfg.Markers))
	for _, m := range cfg.Markers {
		markers[filepath.Clean(m)] = true
	}

	return &Watcher{
		itemsDir:  filepath.Clean(cfg.ItemsDir),
		specsDir:  filepath.Clean(cfg.SpecsDir),
		markers:   markers,
		logger:    logger,
		fsWatcher: fsWatcher,
		notify:    make(chan Notification, bufferSize),
		hashes:    make(map[string]string),
		deletes:   make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}, nil
}

// Notifications returns the channel of classified change events.
// The engine's coalescer is the only consumer.
func (w *Watcher) Notifications() <-chan Notification {
	return w.notify
}

// Start begins watching. Blocks until the context is cancelled or the
// underlying watcher fails.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range []string{w.itemsDir, w.specsDir} {
		if dir == "" {
			continue
		}
		// Watch the parent so we notice the directory being created later.
		if err := w.fsWatcher.Add(filepath.Dir(dir)); err != nil {
			w.logger.Warn("failed to watch parent directory", "path", filepath.Dir(dir), "error", err)
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			w.logger.Debug("directory does not exist, will watch when created", "path", dir)
			continue
		}
		if err := w.addWatchRecursive(dir); err != nil {
			w.logger.Warn("failed to add initial watches", "path", dir, "error", err)
		}
	}

	// Bulk markers: watch the directories that would contain them.
	markerDirs := make(map[string]bool)
	for m := range w.markers {
		markerDirs[filepath.Dir(m)] = true
	}
	for dir := range markerDirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			w.logger.Debug("failed to watch marker directory", "path", dir, "error", err)
		}
	}

	w.logger.Info("file watcher started", "itemsDir", w.itemsDir, "specsDir", w.specsDir, "markers", len(w.markers))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopping", "reason", "context cancelled")
			w.Stop()
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.deletesMu.Lock()
		for path, timer := range w.deletes {
			timer.Stop()
			delete(w.deletes, path)
		}
		w.deletesMu.Unlock()

		err = w.fsWatcher.Close()
		w.logger.Info("file watcher stopped")
	})
	return err
}

// Done returns a channel that's closed when the watcher stops.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// addWatchRecursive adds the directory and all subdirectories to the watch list.
func (w *Watcher) addWatchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip paths with errors
		}
		if d.IsDir() {
			if err := w.fsWatcher.Add(path); err != nil {
				w.logger.Debug("failed to watch directory", "path", path, "error", err)
				return nil
			}
			w.logger.Debug("watching directory", "path", path)
		}
		return nil
	})
}

// handleFSEvent classifies and routes a raw fsnotify event.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	if w.markers[path] {
		w.handleMarkerEvent(event, path)
		return
	}

	var class Class
	switch {
	case w.within(w.itemsDir, path):
		class = ClassItem
	case w.specsDir != "" && w.within(w.specsDir, path):
		class = ClassSpec
	default:
		return
	}

	// New directories need watches before their contents produce events.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.logger.Debug("new directory detected, adding watch", "path", path)
			if err := w.addWatchRecursive(path); err != nil {
				w.logger.Debug("failed to watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	if !strings.HasSuffix(path, ".md") {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.removeHash(path)
		w.scheduleDeleteVerify(path, class)
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		// The file is back; any pending delete was a rename or atomic save.
		w.cancelDeleteVerify(path)

		changed, err := w.hasContentChanged(path)
		if err != nil {
			w.logger.Debug("failed to check content change", "path", path, "error", err)
			return
		}
		if !changed {
			w.logger.Debug("content unchanged, skipping event", "path", path)
			return
		}

		kind := Modified
		if event.Has(fsnotify.Create) {
			kind = Created
		}
		w.emit(Notification{Path: path, Kind: kind, Class: class})
	}
}

// handleMarkerEvent emits bulk-operation marker notifications.
func (w *Watcher) handleMarkerEvent(event fsnotify.Event, path string) {
	var kind Kind
	switch {
	case event.Has(fsnotify.Create):
		kind = Created
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		kind = Deleted
	case event.Has(fsnotify.Write):
		kind = Modified
	default:
		return
	}
	w.logger.Debug("bulk marker event", "path", path, "kind", kind)
	w.emit(Notification{Path: path, Kind: kind, Class: ClassMarker})
}

// scheduleDeleteVerify emits a deleted notification only after confirming
// the file is actually gone. Handles rename and atomic-save false positives.
func (w *Watcher) scheduleDeleteVerify(path string, class Class) {
	w.deletesMu.Lock()
	defer w.deletesMu.Unlock()

	if timer, exists := w.deletes[path]; exists {
		timer.Stop()
	}
	w.deletes[path] = time.AfterFunc(deleteVerifyDelay, func() {
		w.deletesMu.Lock()
		delete(w.deletes, path)
		w.deletesMu.Unlock()

		if _, err := os.Stat(path); err == nil {
			// Still exists - false positive from a rename or atomic save.
			return
		}
		w.emit(Notification{Path: path, Kind: Deleted, Class: class})
	})
}

// cancelDeleteVerify cancels a pending delete verification for path.
func (w *Watcher) cancelDeleteVerify(path string) {
	w.deletesMu.Lock()
	defer w.deletesMu.Unlock()
	if timer, exists := w.deletes[path]; exists {
		timer.Stop()
		delete(w.deletes, path)
	}
}

// emit delivers a notification unless the watcher has stopped.
// Non-blocking: a full channel drops the notification, which is safe because
// the consumer coalesces into whole-cache refreshes anyway.
func (w *Watcher) emit(n Notification) {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.notify <- n:
	default:
		w.logger.Warn("notification channel full, dropping event", "path", n.Path)
	}
}

// within reports whether path is dir or inside dir.
func (w *Watcher) within(dir, path string) bool {
	if dir == "" {
		return false
	}
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// hasContentChanged checks if the file content changed since last check.
// Updates the stored hash if changed.
func (w *Watcher) hasContentChanged(path string) (bool, error) {
	newHash, err := hashFile(path)
	if err != nil {
		return false, err
	}

	w.hashesMu.Lock()
	defer w.hashesMu.Unlock()

	oldHash, exists := w.hashes[path]
	if exists && oldHash == newHash {
		return false, nil
	}

	w.hashes[path] = newHash
	return true, nil
}

// removeHash removes the stored hash for a path.
func (w *Watcher) removeHash(path string) {
	w.hashesMu.Lock()
	defer w.hashesMu.Unlock()
	delete(w.hashes, path)
}

// hashFile computes the SHA256 hash of a file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
