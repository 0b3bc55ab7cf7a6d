// Package transition implements the interactive status transition machine.
package transition

import (
	"time"

	pverrors "github.com/randalmurphal/planview/internal/errors"
	"github.com/randalmurphal/planview/internal/item"
	"github.com/randalmurphal/planview/internal/record"
)

// table holds the allowed interactive transitions between statuses.
// Archived is a side-state and never a transition source or target.
var table = map[item.Status][]item.Status{
	item.StatusNotStarted: {item.StatusInPlanning},
	item.StatusInPlanning: {item.StatusReady, item.StatusNotStarted},
	item.StatusReady:      {item.StatusInProgress, item.StatusInPlanning},
	item.StatusInProgress: {item.StatusCompleted, item.StatusBlocked, item.StatusReady},
	item.StatusBlocked:    {item.StatusReady, item.StatusInProgress},
	item.StatusCompleted:  {item.StatusInProgress},
}

// IsValid reports whether the transition from -> to is allowed.
// Pure table lookup; every pair not in the table is invalid.
func IsValid(from, to item.Status) bool {
	for _, target := range table[from] {
		if target == to {
			return true
		}
	}
	return false
}

// ValidTargets returns the statuses reachable from the given status.
func ValidTargets(from item.Status) []item.Status {
	targets := table[from]
	out := make([]item.Status, len(targets))
	copy(out, targets)
	return out
}

// Apply performs a validated status transition on the record at path.
//
// The record is parsed once: validation runs against the persisted status of
// that same parse, and the write replaces only the status field and the
// last-modified marker on it, so a concurrent write cannot slip in between
// validation and the bytes being written. Every other field and the body are
// preserved byte-for-byte. The resulting write re-enters the pipeline as an
// ordinary change notification; no cache is patched here.
//
// An invalid transition is rejected synchronously with no side effect.
func Apply(path string, to item.Status, now time.Time) (*item.Item, error) {
	f, err := record.Parse(path)
	if err != nil {
		return nil, err
	}
	it, err := record.DecodeItem(f)
	if err != nil {
		return nil, err
	}

	if !IsValid(it.Status, to) {
		return nil, pverrors.New(pverrors.CodeTransitionInvalid,
			"invalid transition for "+it.ID).
			WithWhy(string(it.Status) + " -> " + string(to) + " is not allowed").
			WithFix("valid targets: " + joinStatuses(ValidTargets(it.Status)))
	}

	f.Set("status", string(to))
	f.Set("updated", now.UTC().Format(time.RFC3339))
	if err := f.Save(); err != nil {
		return nil, err
	}

	it.Status = to
	it.Updated = now.UTC()
	return it, nil
}

func joinStatuses(statuses []item.Status) string {
	if len(statuses) == 0 {
		return "(none)"
	}
	out := string(statuses[0])
	for _, s := range statuses[1:] {
		out += ", " + string(s)
	}
	return out
}
