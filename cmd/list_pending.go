package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeworks/workflowforge/internal/persistence"
)

var listPendingCmd = &cobra.Command{
	Use:   "list-pending",
	Short: "List executions checkpointed but not yet completed",
	Args:  cobra.NoArgs,
	RunE:  runListPending,
}

func runListPending(c *cobra.Command, args []string) error {
	if !cfg.Persistence.Enabled {
		return fmt.Errorf("list-pending requires persistence.enabled: true in configuration")
	}

	db, err := persistence.NewDB(cfg.Persistence.DBPath)
	if err != nil {
		return fmt.Errorf("opening persistence database: %w", err)
	}
	defer func() { _ = db.Close() }()

	provider := persistence.NewSQLiteProvider(db, cfg.Persistence.MaxVersions)
	pending, err := provider.ListPending(context.Background())
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("no pending executions")
		return nil
	}

	fmt.Printf("%-38s %-38s %-24s %6s %5s %s\n", "EXECUTION", "WORKFLOW", "NAME", "NEXT", "VER", "UPDATED")
	for _, snap := range pending {
		fmt.Printf("%-38s %-38s %-24s %6d %5d %s\n",
			snap.FoundryExecutionID, snap.WorkflowID, snap.WorkflowName,
			snap.NextOperationIndex, snap.Version, snap.UpdatedAt.Format("2006-01-02T15:04:05"))
	}
	return nil
}
