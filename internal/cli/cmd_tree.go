package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/planview/internal/engine"
	"github.com/randalmurphal/planview/internal/hierarchy"
	"github.com/randalmurphal/planview/internal/item"
)

// newTreeCmd creates the tree command
func newTreeCmd() *cobra.Command {
	var showArchived bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the item hierarchy",
		Long: `Render the parent/child tree of planning items with completion
ratios and specification sync state.

Example:
  planview tree
  planview tree --archived`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			eng, _, err := newEngine(cwd)
			if err != nil {
				printError(err)
				return err
			}

			roots, err := eng.Hierarchy(engine.ViewAll)
			if err != nil {
				return fmt.Errorf("build hierarchy: %w", err)
			}
			if len(roots) == 0 {
				fmt.Println("No items found.")
				return nil
			}

			for _, root := range roots {
				printNode(eng, root, 0, showArchived)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showArchived, "archived", false, "include archived items")
	return cmd
}

// printNode renders one node and its subtree.
func printNode(eng *engine.Engine, n *hierarchy.Node, depth int, showArchived bool) {
	effective := item.EffectiveStatus(n.Item)
	if effective == item.StatusArchived && !showArchived {
		return
	}

	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%s%s %s  %s", indent, statusIcon(effective), n.Item.ID, truncate(n.Item.Title, 50))

	if info, err := eng.ProgressOf(n.Item.ID); err == nil && info != nil {
		line += " " + info.Display
	}
	if sp, err := eng.SpecProgressOf(n.Item.ID); err == nil && sp != nil && !sp.InSync {
		line += "  [spec out of sync]"
	}

	fmt.Println(line)
	for _, child := range n.Children {
		printNode(eng, child, depth+1, showArchived)
	}
}
