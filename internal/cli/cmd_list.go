package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/planview/internal/item"
)

// newListCmd creates the list command
func newListCmd() *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List planning items",
		Long: `List all planning items in the current project.

Example:
  planview list
  planview list --status in-progress`,
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

			var items []*item.Item
			if statusFilter != "" {
				s := item.Status(statusFilter)
				if !item.IsValidStatus(s) {
					return fmt.Errorf("invalid status %q", statusFilter)
				}
				items, err = eng.ItemsInGroup(s)
			} else {
				items, err = eng.Items()
			}
			if err != nil {
				return fmt.Errorf("load items: %w", err)
			}

			if len(items) == 0 {
				fmt.Println("No items found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tPROGRESS\tTITLE")
			fmt.Fprintln(w, "──\t────\t──────\t────────\t─────")

			for _, it := range items {
				prog := "-"
				if info, err := eng.ProgressOf(it.ID); err == nil && info != nil {
					prog = info.Display
				}
				status := statusIcon(item.EffectiveStatus(it)) + " " + string(item.EffectiveStatus(it))
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Kind, status, prog, truncate(it.Title, 40))
			}

			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by effective status")
	return cmd
}
