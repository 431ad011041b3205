package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/route"
	"github.com/guardtrack/patrolsync/internal/ui"
)

var (
	verifyRouteID string
	verifyCPID    string
	verifyLat     float64
	verifyLon     float64
)

var checkpointCmd = &cobra.Command{
	Use:     "checkpoint",
	GroupID: "capture",
	Short:   "Verify presence at a patrol checkpoint",
	Long: `Verify presence at a checkpoint on the assigned route.

The position is checked against the checkpoint's geofence using the
cached route definitions; the verification is queued either way, with
the measured distance recorded for the backend to review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		routes, err := route.LoadFile(a.cfg.RoutesPath())
		if err != nil {
			return fmt.Errorf("no route cache, run the daemon or sync first: %w", err)
		}

		r, ok := route.Find(routes, verifyRouteID)
		if !ok {
			return fmt.Errorf("unknown route %q", verifyRouteID)
		}
		cp, ok := r.Checkpoint(verifyCPID)
		if !ok {
			return fmt.Errorf("no checkpoint %q on route %q", verifyCPID, verifyRouteID)
		}

		inRange, dist := cp.InRange(verifyLat, verifyLon)

		rec, err := a.capture(cmd.Context(), model.EntityCheckpointVerification, model.CheckpointVerification{
			GuardID:      a.cfg.Device.GuardID,
			RouteID:      r.ID,
			CheckpointID: cp.ID,
			Latitude:     verifyLat,
			Longitude:    verifyLon,
			DistanceM:    dist,
			InRange:      inRange,
			VerifiedAt:   time.Now(),
		})
		if err != nil {
			return err
		}

		if inRange {
			fmt.Printf("%s Verified %s (%.0fm) %s\n",
				ui.RenderSuccess("✓"), cp.Name, dist,
				ui.RenderDim(fmt.Sprintf("(queued #%d)", rec.ID)))
		} else {
			fmt.Printf("%s Out of range for %s: %.0fm away (allowed %.0fm) %s\n",
				ui.RenderWarn("!"), cp.Name, dist, cp.RadiusM,
				ui.RenderDim(fmt.Sprintf("(queued #%d)", rec.ID)))
		}
		return nil
	},
}

func init() {
	checkpointCmd.Flags().StringVar(&verifyRouteID, "route", "", "route ID")
	checkpointCmd.Flags().StringVar(&verifyCPID, "checkpoint", "", "checkpoint ID")
	checkpointCmd.Flags().Float64Var(&verifyLat, "lat", 0, "current latitude")
	checkpointCmd.Flags().Float64Var(&verifyLon, "lon", 0, "current longitude")
	_ = checkpointCmd.MarkFlagRequired("route")
	_ = checkpointCmd.MarkFlagRequired("checkpoint")
	rootCmd.AddCommand(checkpointCmd)
}
