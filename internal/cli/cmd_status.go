package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show items grouped by lifecycle status",
		Long: `Show how many items sit in each lifecycle status group.

Example:
  planview status`,
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

			groups, err := eng.StatusGroups()
			if err != nil {
				return fmt.Errorf("load status groups: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, g := range groups {
				if g.Count == 0 && !verbose {
					continue
				}
				fmt.Fprintf(w, "%s %s\t%d\n", statusIcon(g.Status), statusBadge(g.Status), g.Count)
			}
			w.Flush()
			return nil
		},
	}
}
