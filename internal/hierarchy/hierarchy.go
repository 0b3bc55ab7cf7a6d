// Package hierarchy builds parent/child trees over planning items.
//
// Trees are built wholesale from an item subset and are owned by the cache
// generation that built them; nodes are never mutated in place.
package hierarchy

import (
	"log/slog"

	"github.com/randalmurphal/planview/internal/item"
)

// Node is a planning item plus its ordered children.
type Node struct {
	Item     *item.Item
	Children []*Node
}

// Build groups items by parent identifier in O(n) via an index map.
// An item whose parent is not present in the input subset is an orphan and
// becomes an additional root. Child order follows input order, so callers
// get deterministic trees from a sorted snapshot.
func Build(items []*item.Item) []*Node {
	nodes := make(map[string]*Node, len(items))
	for _, it := range items {
		nodes[it.ID] = &Node{Item: it}
	}

	var roots []*Node
	for _, it := range items {
		n := nodes[it.ID]
		if it.HasParent() {
			if parent, ok := nodes[it.Parent]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
			// Unresolved parent reference: treated as absent, item roots.
		}
		roots = append(roots, n)
	}

	// Items caught in a parent cycle are neither roots nor reachable from
	// one; without this they would vanish from every view.
	marked := make(map[string]bool, len(items))
	Walk(roots, func(n *Node) { marked[n.Item.ID] = true })
	if len(marked) < len(items) {
		roots = rootCycles(items, nodes, roots, marked)
	}

	return roots
}

// rootCycles breaks each parent cycle by detaching its first member (in
// input order) from the cycle and promoting it to a root. The rest of the
// cycle hangs under the promoted member like any other subtree.
func rootCycles(items []*item.Item, nodes map[string]*Node, roots []*Node, marked map[string]bool) []*Node {
	for _, it := range items {
		if marked[it.ID] {
			continue
		}
		n := nodes[it.ID]
		if parent, ok := nodes[it.Parent]; ok {
			parent.Children = detach(parent.Children, n)
		}
		roots = append(roots, n)
		Walk([]*Node{n}, func(m *Node) { marked[m.Item.ID] = true })
		slog.Warn("parent cycle detected, item promoted to root", "id", it.ID, "parent", it.Parent)
	}
	return roots
}

func detach(children []*Node, n *Node) []*Node {
	for i, c := range children {
		if c == n {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}

// Walk visits nodes depth-first, parents before children.
func Walk(roots []*Node, fn func(*Node)) {
	for _, n := range roots {
		fn(n)
		Walk(n.Children, fn)
	}
}

// PostOrder visits nodes leaves-first: every child is visited before its
// parent. This is the traversal order status propagation requires.
func PostOrder(roots []*Node, fn func(*Node)) {
	for _, n := range roots {
		PostOrder(n.Children, fn)
		fn(n)
	}
}

// Find returns the node for an item ID, or nil if it is not in the tree.
func Find(roots []*Node, id string) *Node {
	for _, n := range roots {
		if n.Item.ID == id {
			return n
		}
		if found := Find(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}
