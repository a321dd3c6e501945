package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/evalgo/memento/model"
	"github.com/evalgo/memento/temporal"
)

var (
	checkpointHops int
	checkpointReason string
	checkpointUseOriginalID bool
)

// checkpointCmd groups the history-layer subcommands: create, export,
// import. All three operate on the temporal.Service built during bootstrap,
// so they require HISTORY_ENABLED (the default).
var checkpointCmd = &cobra.Command{
	Use: "checkpoint",
	Short: "create, export, and import knowledge-graph checkpoints",
}

var checkpointCreateCmd = &cobra.Command{
	Use: "create <seedEntityId> [more ...]",
	Short: "create a checkpoint rooted at the given seed entities",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)
		if a.hist == nil {
			return fmt.Errorf("cli: history layer disabled (HISTORY_ENABLED=false)")
		}

		result, err := a.hist.CreateCheckpoint(ctx, args, model.CheckpointReason(checkpointReason), checkpointHops)
		if err != nil {
			return fmt.Errorf("cli: creating checkpoint: %w", err)
		}
		fmt.Printf("checkpoint %s (%d members)\n", result.CheckpointID, len(result.Members))
		return nil
	},
}

var checkpointExportCmd = &cobra.Command{
	Use: "export <checkpointId> <file.yaml>",
	Short: "export a checkpoint and its member subgraph to a YAML file",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)
		if a.hist == nil {
			return fmt.Errorf("cli: history layer disabled (HISTORY_ENABLED=false)")
		}

		export, err := a.hist.ExportCheckpoint(ctx, args[0])
		if err != nil {
			return fmt.Errorf("cli: exporting checkpoint: %w", err)
		}
		data, err := yaml.Marshal(export)
		if err != nil {
			return fmt.Errorf("cli: marshaling checkpoint export: %w", err)
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return fmt.Errorf("cli: writing %s: %w", args[1], err)
		}
		fmt.Printf("exported checkpoint %s (%d members, %d relationships) to %s\n",
			export.Checkpoint.ID, len(export.Members), len(export.Relationships), args[1])
		return nil
	},
}

var checkpointImportCmd = &cobra.Command{
	Use: "import <file.yaml>",
	Short: "import a previously exported checkpoint, linking existing members only",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)
		if a.hist == nil {
			return fmt.Errorf("cli: history layer disabled (HISTORY_ENABLED=false)")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("cli: reading %s: %w", args[0], err)
		}
		var export temporal.CheckpointExport
		if err := yaml.Unmarshal(data, &export); err != nil {
			return fmt.Errorf("cli: parsing %s: %w", args[0], err)
		}

		id, err := a.hist.ImportCheckpoint(ctx, export, temporal.ImportOptions{UseOriginalID: checkpointUseOriginalID})
		if err != nil {
			return fmt.Errorf("cli: importing checkpoint: %w", err)
		}
		fmt.Printf("imported checkpoint %s\n", id)
		return nil
	},
}

func init() {
	checkpointCreateCmd.Flags().IntVar(&checkpointHops, "hops", 2, "reachability radius from seeds, clamped to [1,5]")
	checkpointCreateCmd.Flags().StringVar(&checkpointReason, "reason", string(model.CheckpointManual), "checkpoint reason: "+strings.Join([]string{
		string(model.CheckpointManual), string(model.CheckpointIncident), string(model.CheckpointDaily),
	}, ", "))
	checkpointImportCmd.Flags().BoolVar(&checkpointUseOriginalID, "keep-id", false, "reuse the exported checkpoint id instead of minting a new one")
	checkpointCmd.AddCommand(checkpointCreateCmd, checkpointExportCmd, checkpointImportCmd)
}
