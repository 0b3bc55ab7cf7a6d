package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/planview/internal/item"
)

// newShowCmd creates the show command
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one item in detail",
		Args:  cobra.ExactArgs(1),
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

			it, err := eng.Item(args[0])
			if err != nil {
				printError(err)
				return err
			}

			fmt.Printf("%s %s  %s\n", statusIcon(item.EffectiveStatus(it)), it.ID, it.Title)
			fmt.Printf("  Kind:     %s\n", it.Kind)
			fmt.Printf("  Status:   %s\n", statusBadge(item.EffectiveStatus(it)))
			fmt.Printf("  Priority: %s\n", it.GetPriority())
			if it.HasParent() {
				fmt.Printf("  Parent:   %s\n", it.Parent)
			}

			if children, err := eng.ChildrenOf(it.ID); err == nil && len(children) > 0 {
				info, _ := eng.ProgressOf(it.ID)
				if info != nil {
					fmt.Printf("  Progress: %s %d%%\n", info.Display, info.Percentage)
				}
				fmt.Println("  Children:")
				for _, c := range children {
					fmt.Printf("    %s %s  %s\n", statusIcon(item.EffectiveStatus(c)), c.ID, truncate(c.Title, 50))
				}
			}

			if it.HasSpec() {
				sp, err := eng.SpecProgressOf(it.ID)
				if err == nil && sp != nil {
					sync := "in sync"
					if !sp.InSync {
						sync = "OUT OF SYNC"
					}
					fmt.Printf("  Spec:     %s  phases %d/%d  declared %s (%s)\n",
						it.Spec, sp.CompletedPhases, sp.TotalPhases, sp.DeclaredStatus, sync)
				} else {
					fmt.Printf("  Spec:     %s (unresolved)\n", it.Spec)
				}
			}

			return nil
		},
	}
}
