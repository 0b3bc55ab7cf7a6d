package engine

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/randalmurphal/planview/internal/events"
	"github.com/randalmurphal/planview/internal/watcher"
)

// Coalescer buffers change notifications behind a debounce window and turns
// them into refresh cycles. It is the single consumer of raw notifications,
// so there are no re-entrant callback chains: everything funnels through one
// loop that runs at most one cycle at a time.
type Coalescer struct {
	e             *Engine
	notifications <-chan watcher.Notification
	logger        *slog.Logger
}

// NewCoalescer creates the coalescer consuming the given notification stream.
func (e *Engine) NewCoalescer(notifications <-chan watcher.Notification) *Coalescer {
	return &Coalescer{e: e, notifications: notifications, logger: e.logger}
}

// Run processes notifications until the context is cancelled.
//
// Item notifications reset a short debounce window; on expiry exactly one
// refresh cycle runs. Spec notifications invalidate only the owning item's
// specification cache entry. Bulk marker notifications suppress the normal
// debounce entirely and force exactly one full-clear cycle once the marker
// settles, bounded by a hard timeout in case the marker never clears.
func (c *Coalescer) Run(ctx context.Context) error {
	reqCh := make(chan refreshRequest, 8)
	stop := make(chan struct{})
	c.e.reqMu.Lock()
	c.e.refreshCh = reqCh
	c.e.refreshStop = stop
	c.e.reqMu.Unlock()
	defer func() {
		c.e.reqMu.Lock()
		c.e.refreshCh = nil
		c.e.refreshStop = nil
		c.e.reqMu.Unlock()
		// Wakes any Refresh whose queued request will never be served.
		close(stop)
	}()

	var (
		debounce, settle, deadline    *time.Timer
		debounceC, settleC, deadlineC <-chan time.Time
		bulkActive                    bool
	)

	stopTimer := func(t **time.Timer, ch *<-chan time.Time) {
		if *t != nil {
			(*t).Stop()
			*t, *ch = nil, nil
		}
	}
	startTimer := func(t **time.Timer, ch *<-chan time.Time, d time.Duration) {
		stopTimer(t, ch)
		*t = time.NewTimer(d)
		*ch = (*t).C
	}

	enterBulk := func() {
		if !bulkActive {
			c.logger.Info("bulk operation detected, suppressing refreshes")
		}
		bulkActive = true
		stopTimer(&debounce, &debounceC)
		stopTimer(&settle, &settleC)
		if deadline == nil {
			// Upper bound from bulk start; deliberately never extended.
			startTimer(&deadline, &deadlineC, c.e.bulkTimeout)
		}
	}
	exitBulk := func() {
		bulkActive = false
		stopTimer(&settle, &settleC)
		stopTimer(&deadline, &deadlineC)
	}

	// A marker left over from before startup means a bulk operation is
	// already in flight.
	if c.markerPresent() {
		enterBulk()
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer(&debounce, &debounceC)
			exitBulk()
			return ctx.Err()

		case n, ok := <-c.notifications:
			if !ok {
				return nil
			}
			c.handleNotification(n, bulkActive,
				func() { startTimer(&debounce, &debounceC, c.e.debounce) },
				enterBulk,
				func() {
					if bulkActive && !c.markerPresent() {
						startTimer(&settle, &settleC, c.e.bulkDebounce)
					}
				})

		case <-debounceC:
			debounce, debounceC = nil, nil
			c.e.runCycle()

		case <-settleC:
			settle, settleC = nil, nil
			c.logger.Info("bulk operation settled, refreshing")
			exitBulk()
			c.e.runFullClear()

		case <-deadlineC:
			deadline, deadlineC = nil, nil
			c.logger.Warn("bulk operation timed out, forcing refresh")
			exitBulk()
			c.e.runFullClear()

		case req := <-reqCh:
			stopTimer(&debounce, &debounceC)
			// Coalesce every queued request into this single cycle.
			reqs := []refreshRequest{req}
		drain:
			for {
				select {
				case r := <-reqCh:
					reqs = append(reqs, r)
				default:
					break drain
				}
			}
			c.e.runCycle()
			for _, r := range reqs {
				close(r.done)
			}
		}
	}
}

// handleNotification routes one notification. Timer manipulation stays in
// Run's scope; this only decides which knob to turn.
func (c *Coalescer) handleNotification(n watcher.Notification, bulkActive bool, resetDebounce, enterBulk, markerCleared func()) {
	switch n.Class {
	case watcher.ClassMarker:
		switch n.Kind {
		case watcher.Created, watcher.Modified:
			enterBulk()
		case watcher.Deleted:
			markerCleared()
		}

	case watcher.ClassSpec:
		if bulkActive {
			return // the full-clear cycle will reset the spec tier
		}
		// Fine-grained: only the owning item's entry is evicted.
		if id, ok := c.e.specs.OwnerOf(n.Path); ok {
			c.e.specs.InvalidateItem(id)
			c.e.publisher.Publish(events.NewEvent(events.EventSpecChanged, id, nil))
			c.e.publisher.Publish(events.NewEvent(events.EventViewChanged, "", nil))
			c.logger.Debug("spec cache entry invalidated", "id", id, "path", n.Path)
		} else {
			c.logger.Debug("spec change with no cached owner", "path", n.Path)
		}

	case watcher.ClassItem:
		if bulkActive {
			return // suppressed; the settle cycle covers it
		}
		resetDebounce()
	}
}

// markerPresent reports whether any bulk-operation marker currently exists.
func (c *Coalescer) markerPresent() bool {
	for _, m := range c.e.markers {
		if _, err := os.Stat(m); err == nil {
			return true
		}
	}
	return false
}
