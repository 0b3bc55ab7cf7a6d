package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/planview/internal/events"
	"github.com/randalmurphal/planview/internal/lock"
	"github.com/randalmurphal/planview/internal/watcher"
)

// newWatchCmd creates the watch command
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch records and refresh the view live",
		Long: `Watch the item and specification records for external changes,
coalesce them into refresh cycles, and report every view change.
Runs until interrupted.

Example:
  planview watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			eng, cfg, err := newEngine(cwd)
			if err != nil {
				printError(err)
				return err
			}

			guard := lock.NewSessionGuard(cwd)
			if err := guard.Acquire(); err != nil {
				return err
			}
			defer guard.Release()

			w, err := watcher.New(&watcher.Config{
				ItemsDir: eng.ItemsDir(),
				SpecsDir: eng.SpecsDir(),
				Markers:  cfg.MarkerPaths(cwd),
				Logger:   newLogger(cfg),
			})
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sub := eng.Subscribe(events.GlobalItemID)
			defer eng.Unsubscribe(events.GlobalItemID, sub)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return w.Start(ctx) })
			g.Go(func() error { return eng.NewCoalescer(w.Notifications()).Run(ctx) })
			g.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case ev, ok := <-sub:
						if !ok {
							return nil
						}
						if quiet {
							continue
						}
						switch ev.Type {
						case events.EventViewChanged:
							fmt.Println("view changed")
						case events.EventItemChanged:
							fmt.Println("item changed:", ev.ItemID)
						case events.EventSpecChanged:
							fmt.Println("spec changed:", ev.ItemID)
						}
					}
				}
			})

			// Prime the caches so the first external change diffs cleanly.
			eng.Refresh()

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
