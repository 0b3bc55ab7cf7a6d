package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/planview/internal/config"
	"github.com/randalmurphal/planview/internal/item"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize planview in the current project",
		Long: `Create the .planview directory layout and a default config.

Example:
  planview init`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			if config.IsInitialized(cwd) {
				fmt.Println("planview already initialized")
				return nil
			}

			for _, dir := range []string{
				filepath.Join(cwd, item.PlanviewDir, item.ItemsDir),
				filepath.Join(cwd, item.PlanviewDir, item.SpecsDir),
			} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}

			if err := config.Default().Save(cwd); err != nil {
				return err
			}

			fmt.Println("Initialized planview project")
			fmt.Println("  Items: " + filepath.Join(item.PlanviewDir, item.ItemsDir))
			fmt.Println("  Specs: " + filepath.Join(item.PlanviewDir, item.SpecsDir))
			return nil
		},
	}
}
