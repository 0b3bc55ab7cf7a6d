// Package propagate implements bottom-up status propagation.
//
// A pass walks a hierarchy leaves-first and marks a container completed once
// every direct child is effectively completed. Propagation never advances a
// container to any other status and never downgrades a completed container;
// everything else is left to explicit interactive transitions.
package propagate

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/planview/internal/hierarchy"
	"github.com/randalmurphal/planview/internal/item"
	"github.com/randalmurphal/planview/internal/record"
)

// WriteFunc persists a status for the record at path.
type WriteFunc func(path string, status item.Status, now time.Time) error

// Result reports what a propagation pass did.
type Result struct {
	// Updated lists item IDs whose records were written this pass.
	Updated []string
	// Failed lists item IDs whose write failed and was skipped.
	Failed []string
}

// Changed returns true if the pass wrote at least one record.
func (r *Result) Changed() bool {
	return len(r.Updated) > 0
}

// Engine runs propagation passes over item hierarchies.
type Engine struct {
	write  WriteFunc
	logger *slog.Logger
	now    func() time.Time
}

// New creates a propagation engine writing through the record layer.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		write:  record.UpdateStatus,
		logger: logger,
		now:    time.Now,
	}
}

// SetWriteFunc overrides the status writer. Used by tests.
func (e *Engine) SetWriteFunc(fn WriteFunc) {
	e.write = fn
}

// Run executes one propagation pass over the given roots.
//
// Per-item write failures are logged and skipped; the pass continues for all
// remaining items. A successful write also updates the in-memory item so a
// parent visited later in the same pass observes the new status; the caches
// holding these items are invalidated after the pass regardless.
func (e *Engine) Run(roots []*hierarchy.Node) *Result {
	res := &Result{}

	hierarchy.PostOrder(roots, func(n *hierarchy.Node) {
		it := n.Item

		if !it.Kind.IsContainer() || len(n.Children) == 0 {
			return
		}
		// Archived items are orthogonal to the status scale and never
		// participate in propagation.
		if item.IsArchived(it) {
			return
		}
		// Monotonic non-downgrade: once completed, automated propagation
		// never writes a lesser status, even if a child regressed. The
		// resulting status/progress mismatch is surfaced via progress.
		if it.Status == item.StatusCompleted {
			return
		}

		if !allChildrenCompleted(n) {
			return
		}

		if err := e.write(it.Path, item.StatusCompleted, e.now()); err != nil {
			e.logger.Warn("propagation write failed", "id", it.ID, "path", it.Path, "error", err)
			res.Failed = append(res.Failed, it.ID)
			return
		}

		e.logger.Info("propagated status", "id", it.ID, "status", item.StatusCompleted)
		it.Status = item.StatusCompleted
		res.Updated = append(res.Updated, it.ID)
	})

	return res
}

// allChildrenCompleted reports whether every direct child is effectively
// completed.
func allChildrenCompleted(n *hierarchy.Node) bool {
	for _, child := range n.Children {
		if item.EffectiveStatus(child.Item) != item.StatusCompleted {
			return false
		}
	}
	return true
}
