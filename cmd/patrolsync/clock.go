package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/ui"
)

var (
	clockLat float64
	clockLon float64
)

var clockCmd = &cobra.Command{
	Use:     "clock {in|out}",
	GroupID: "capture",
	Short:   "Clock in or out of a shift",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var punch model.PunchType
		switch args[0] {
		case "in":
			punch = model.PunchIn
		case "out":
			punch = model.PunchOut
		default:
			return fmt.Errorf("expected 'in' or 'out', got %q", args[0])
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.capture(cmd.Context(), model.EntityTimeRecord, model.TimeRecord{
			GuardID:   a.cfg.Device.GuardID,
			SiteID:    a.cfg.Device.SiteID,
			Punch:     punch,
			PunchedAt: time.Now(),
			Latitude:  clockLat,
			Longitude: clockLon,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Clocked %s at %s %s\n",
			ui.RenderSuccess("✓"), punch,
			time.Now().Format("15:04:05"),
			ui.RenderDim(fmt.Sprintf("(queued #%d)", rec.ID)))
		return nil
	},
}

func init() {
	clockCmd.Flags().Float64Var(&clockLat, "lat", 0, "current latitude")
	clockCmd.Flags().Float64Var(&clockLon, "lon", 0, "current longitude")
	rootCmd.AddCommand(clockCmd)
}
