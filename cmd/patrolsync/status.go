package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/ui"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show queue state and recent records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		counts, err := a.st.CountByStatus(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%s  pending %s  failed %s  synced %s\n",
			ui.RenderAccent("Queue:"),
			ui.RenderWarn(fmt.Sprintf("%d", counts.Pending+counts.InProgress)),
			ui.RenderError(fmt.Sprintf("%d", counts.Failed)),
			ui.RenderSuccess(fmt.Sprintf("%d", counts.Synced)))

		if statusLimit <= 0 {
			return nil
		}

		recent, err := a.st.ListRecent(ctx, statusLimit)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			fmt.Println(ui.RenderDim("No records captured yet."))
			return nil
		}

		fmt.Println()
		for _, rec := range recent {
			fmt.Printf("  #%-5d %-25s %-12s %s\n",
				rec.ID, rec.EntityType, renderStatus(rec.Status),
				ui.RenderDim(rec.CreatedAt.Format("Jan 2 15:04:05")))
		}
		return nil
	},
}

func renderStatus(s model.SyncStatus) string {
	switch s {
	case model.StatusSynced:
		return ui.RenderSuccess(string(s))
	case model.StatusFailed:
		return ui.RenderError(string(s))
	case model.StatusInProgress:
		return ui.RenderAccent(string(s))
	default:
		return ui.RenderWarn(string(s))
	}
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "recent", 10, "number of recent records to list (0 to hide)")
	rootCmd.AddCommand(statusCmd)
}
