// Package progress computes completion ratios for container items.
package progress

import (
	"fmt"
	"math"

	"github.com/randalmurphal/planview/internal/hierarchy"
	"github.com/randalmurphal/planview/internal/item"
)

// Info summarizes direct-child completion for a container item.
// It exists only for items with at least one direct child.
type Info struct {
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Display    string `json:"display"`
}

// Percentage returns completed/total as a 0-100 percentage, rounded
// half away from zero: 1/3 -> 33, 2/3 -> 67, 1/2 -> 50.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(completed)/float64(total)*100 + 0.5))
}

// Calculate returns progress over a node's direct children, or nil when the
// node has no children. Completion is judged on effective status, so an
// archived child does not count as completed regardless of its stored status.
func Calculate(n *hierarchy.Node) *Info {
	if n == nil || len(n.Children) == 0 {
		return nil
	}

	completed := 0
	for _, child := range n.Children {
		if item.EffectiveStatus(child.Item) == item.StatusCompleted {
			completed++
		}
	}
	total := len(n.Children)

	return &Info{
		Completed:  completed,
		Total:      total,
		Percentage: Percentage(completed, total),
		Display:    fmt.Sprintf("(%d/%d)", completed, total),
	}
}
