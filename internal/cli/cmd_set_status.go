package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/planview/internal/item"
	"github.com/randalmurphal/planview/internal/transition"
)

// newSetStatusCmd creates the set-status command
func newSetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <item-id> <status>",
		Short: "Move an item to a new lifecycle status",
		Long: `Apply an interactive status transition. Only transitions allowed
by the lifecycle state machine are accepted; the record is rewritten
atomically with every other field preserved.

Example:
  planview set-status FEAT-001 in-progress`,
		Args: cobra.ExactArgs(2),
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

			id := args[0]
			to := item.Status(args[1])
			if !item.IsValidStatus(to) || to == item.StatusArchived {
				return fmt.Errorf("invalid target status %q", args[1])
			}

			it, err := eng.Item(id)
			if err != nil {
				printError(err)
				return err
			}

			if err := eng.ApplyTransition(id, to); err != nil {
				printError(err)
				return err
			}

			fmt.Printf("%s: %s → %s\n", id, it.Status, to)
			if targets := transition.ValidTargets(to); len(targets) > 0 && verbose {
				fmt.Printf("  next: %v\n", targets)
			}
			return nil
		},
	}
}
