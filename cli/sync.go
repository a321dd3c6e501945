package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/evalgo/memento/coordinator"
	"github.com/evalgo/memento/kgs"
)

var (
	syncRoots []string
	watchDebounce time.Duration
)

var fullCmd = &cobra.Command{
	Use: "full [roots ...]",
	Short: "run a full-repository sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		runCtx, cancel := a.runEngine(ctx)
		defer cancel()
		defer a.close(context.Background())

		roots := append(append([]string{}, args...), syncRoots...)
		if len(roots) == 0 {
			roots = []string{"."}
		}

		opID := a.engine.StartFullSync(coordinator.StartOptions{Roots: roots})
		a.log.WithField("operationId", opID).Info("full sync started")
		return waitForTerminal(runCtx, a, opID)
	},
}

var watchCmd = &cobra.Command{
	Use: "watch <path>",
	Short: "run an incremental sync on every filesystem change under path",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		runCtx, cancel := a.runEngine(ctx)
		defer cancel()
		defer a.close(context.Background())

		root := args[0]
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("cli: creating watcher: %w", err)
		}
		defer watcher.Close()

		if err := addRecursive(watcher, root); err != nil {
			return err
		}

		// Prime the graph with a full sync before watching for changes.
		seedID := a.engine.StartFullSync(coordinator.StartOptions{Roots: []string{root}})
		if err := waitForTerminal(runCtx, a, seedID); err != nil {
			a.log.WithError(err).Warn("cli: initial full sync did not complete cleanly")
		}

		a.log.WithField("path", root).Info("watching for changes")
		pending := map[string]string{}
		ticker := time.NewTicker(watchDebounce)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				pending[ev.Name] = changeType(ev)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				a.log.WithError(err).Warn("cli: watcher error")
			case <-ticker.C:
				if len(pending) == 0 {
					continue
				}
				changes := make([]coordinator.FileChange, 0, len(pending))
				for path, kind := range pending {
					changes = append(changes, coordinator.FileChange{Path: path, Type: kind})
				}
				pending = map[string]string{}
				opID := a.engine.SyncFileChanges(changes, coordinator.StartOptions{})
				a.log.WithField("operationId", opID).WithField("files", len(changes)).Info("incremental sync started")
			}
		}
	},
}

var statusCmd = &cobra.Command{
	Use: "status <operationId>",
	Short: "print a tracked operation's status",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		op, ok := a.engine.GetStatus(args[0])
		if !ok {
			return fmt.Errorf("cli: no operation tracked with id %s", args[0])
		}
		printOperation(op)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use: "stats",
	Short: "print aggregate statistics across tracked operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		stats := a.engine.GetStatistics()
		fmt.Printf("total operations: %d\n", stats.TotalOperations)
		for status, n := range stats.ByStatus {
			fmt.Printf(" %-12s %d\n", status, n)
		}
		return nil
	},
}

var searchQueryLimit int

var searchCmd = &cobra.Command{
	Use: "search <query>",
	Short: "search the knowledge graph structurally or semantically",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		result, err := a.kgs.Search(ctx, kgs.SearchRequest{
			Mode: kgs.SearchSemantic,
			Query: args[0],
			Limit: searchQueryLimit,
		})
		if err != nil {
			return fmt.Errorf("cli: search failed: %w", err)
		}
		if result.FellBackToStructural {
			fmt.Println("(fell back to structural search)")
		}
		for _, e := range result.Entities {
			fmt.Printf("%-10s %-30s %s\n", e.Type, e.Name, e.Path)
		}
		return nil
	},
}

func init() {
	fullCmd.Flags().StringSliceVar(&syncRoots, "roots", nil, "additional roots beyond the positional args")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "how long to batch filesystem events before syncing")
	searchCmd.Flags().IntVar(&searchQueryLimit, "limit", 20, "maximum results to return")
}

// waitForTerminal polls GetStatus until op leaves pending/running, printing
// its final state. The coordinator has no blocking completion signal by
// design, so the CLI polls too.
func waitForTerminal(ctx context.Context, a *app, opID string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			op, ok := a.engine.GetStatus(opID)
			if !ok {
				return fmt.Errorf("cli: operation %s vanished from the registry", opID)
			}
			if op.Status == coordinator.StatusCompleted || op.Status == coordinator.StatusFailed || op.Status == coordinator.StatusRolledBack {
				printOperation(op)
				if op.Status == coordinator.StatusFailed {
					return fmt.Errorf("cli: operation %s failed", opID)
				}
				return nil
			}
		}
	}
}

func printOperation(op *coordinator.SyncOperation) {
	fmt.Printf("operation %s (%s) status=%s\n", op.ID, op.Type, op.Status)
	fmt.Printf(" filesProcessed=%d entitiesCreated=%d entitiesUpdated=%d relationshipsCreated=%d unresolved=%d\n",
		op.Counters.FilesProcessed, op.Counters.EntitiesCreated, op.Counters.EntitiesUpdated,
		op.Counters.RelationshipsCreated, op.Counters.Unresolved)
	for _, c := range op.Conflicts {
		fmt.Printf(" conflict: %s %s (%s)\n", c.EntityID, c.Kind, c.Detail)
	}
	for _, e := range op.Errors {
		fmt.Printf(" error: %s: %s\n", e.File, e.Message)
	}
}

func changeType(ev fsnotify.Event) string {
	switch {
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		return "delete"
	case ev.Op&fsnotify.Create != 0:
		return "create"
	default:
		return "modify"
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
