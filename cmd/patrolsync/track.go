package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/ui"
)

var (
	trackLat      float64
	trackLon      float64
	trackAccuracy float64
)

var trackCmd = &cobra.Command{
	Use:     "track",
	GroupID: "capture",
	Short:   "Record a GPS track point",
	Long: `Record one GPS track point. Points are cheap to queue and are
batched into a single request at sync time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.capture(cmd.Context(), model.EntityLocationRecord, model.LocationRecord{
			GuardID:    a.cfg.Device.GuardID,
			Latitude:   trackLat,
			Longitude:  trackLon,
			Accuracy:   trackAccuracy,
			RecordedAt: time.Now(),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Point recorded %s\n",
			ui.RenderSuccess("✓"),
			ui.RenderDim(fmt.Sprintf("(queued #%d)", rec.ID)))
		return nil
	},
}

func init() {
	trackCmd.Flags().Float64Var(&trackLat, "lat", 0, "latitude")
	trackCmd.Flags().Float64Var(&trackLon, "lon", 0, "longitude")
	trackCmd.Flags().Float64Var(&trackAccuracy, "accuracy", 0, "accuracy in meters")
	_ = trackCmd.MarkFlagRequired("lat")
	_ = trackCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(trackCmd)
}
