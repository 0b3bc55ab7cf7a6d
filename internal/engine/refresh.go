package engine

import (
	"time"

	"github.com/randalmurphal/planview/internal/events"
	"github.com/randalmurphal/planview/internal/hierarchy"
)

// refreshRequest is a manual refresh waiting for completion.
type refreshRequest struct {
	done chan struct{}
}

// Refresh runs one refresh cycle synchronously. If the coalescer is running,
// the request is handed to it so pending debounce timers are cancelled and
// cycles stay serialized; otherwise the cycle runs directly.
func (e *Engine) Refresh() {
	e.reqMu.Lock()
	ch, stop := e.refreshCh, e.refreshStop
	e.reqMu.Unlock()

	if ch != nil {
		req := refreshRequest{done: make(chan struct{})}
		select {
		case ch <- req:
			select {
			case <-req.done:
				return
			case <-stop:
				// Coalescer exited with the request still queued; fall
				// through and run the cycle directly.
			}
		default:
			// Coalescer busy mid-cycle; run directly. runCycle serializes
			// on refreshMu, so this still never overlaps another cycle.
		}
	}
	e.runCycle()
}

// runCycle executes exactly one refresh cycle:
//
//  1. invalidate the item, hierarchy, and progress tiers
//  2. reload items
//  3. run status propagation, which may write records
//  4. invalidate the same three tiers again (propagation touched files)
//  5. signal observers to re-render
//
// Hierarchy and progress then rebuild lazily on the next read. Cycles are
// serialized on refreshMu and always run to completion.
func (e *Engine) runCycle() {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	start := time.Now()

	e.InvalidateAll()

	items, err := e.store.LoadAll()
	if err != nil {
		e.logger.Error("refresh: reload failed", "error", err)
		return
	}

	res := e.prop.Run(hierarchy.Build(items))

	e.InvalidateAll()

	for _, id := range res.Updated {
		e.publisher.Publish(events.NewEvent(events.EventItemChanged, id, nil))
	}
	e.publisher.Publish(events.NewEvent(events.EventViewChanged, "", nil))

	e.logger.Debug("refresh cycle complete",
		"items", len(items),
		"propagated", len(res.Updated),
		"failed", len(res.Failed),
		"duration", time.Since(start),
	)
}

// runFullClear is the bulk-operation variant of runCycle: the specification
// tier is cleared wholesale as well, since a bulk change (e.g. a checkout)
// may have rewritten any number of spec records.
func (e *Engine) runFullClear() {
	e.specs.Reset()
	e.runCycle()
}
