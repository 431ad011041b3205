package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guardtrack/patrolsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one sync pass now",
	Long: `Run one sync pass across all entity types in priority order:

  1. Time records (payroll)
  2. Checkpoint verifications (compliance)
  3. Activity reports
  4. Photos
  5. GPS track points (batched)

Records the server permanently rejects are marked failed; transient
failures stay pending for the next pass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		orch, err := a.newOrchestrator(nil)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := orch.Recover(ctx); err != nil {
			return err
		}

		fmt.Printf("%s Syncing to %s...\n", ui.RenderAccent("→"), a.cfg.Server.URL)
		start := time.Now()

		result, err := orch.SyncAll(ctx)
		if err != nil {
			return fmt.Errorf("sync pass: %w", err)
		}

		fmt.Printf("%s Synced %d record(s) in %s",
			ui.RenderSuccess("✓"), result.Succeeded, time.Since(start).Round(time.Millisecond))
		if result.Failed > 0 {
			fmt.Printf(", %s", ui.RenderError(fmt.Sprintf("%d rejected", result.Failed)))
		}
		if result.Pending > 0 {
			fmt.Printf(", %s", ui.RenderWarn(fmt.Sprintf("%d still pending", result.Pending)))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
