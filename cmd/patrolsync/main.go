// Command patrolsync is the on-device companion for the guard patrol
// backend: it captures punches, checkpoint scans, reports, photos and
// track points into a local queue and syncs them when connectivity
// allows.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "patrolsync",
	Short: "Offline-first sync client for guard patrol tracking",
	Long: `patrolsync keeps a local queue of everything a guard does on shift
(clock punches, checkpoint scans, activity reports, photos, GPS track
points) and pushes it to the backend whenever the network allows.

Records are captured instantly and synced in the background; nothing is
lost while offline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: patrolsync.yaml in the data dir)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "capture", Title: "Capture Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
