package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guardtrack/patrolsync/internal/remote"
	"github.com/guardtrack/patrolsync/internal/route"
	"github.com/guardtrack/patrolsync/internal/ui"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	GroupID: "sync",
	Short:   "Show cached patrol routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		routes, err := route.LoadFile(a.cfg.RoutesPath())
		if errors.Is(err, os.ErrNotExist) || (err == nil && len(routes) == 0) {
			fmt.Println(ui.RenderDim("No routes cached. Run 'patrolsync routes pull' first."))
			return nil
		}
		if err != nil {
			return err
		}
		for _, r := range routes {
			fmt.Printf("%s %s (%d checkpoints)\n",
				ui.RenderAccent(r.ID), r.Name, len(r.Checkpoints))
			for _, cp := range r.Checkpoints {
				fmt.Printf("  %-12s %-25s %.5f,%.5f r=%.0fm\n",
					cp.ID, cp.Name, cp.Latitude, cp.Longitude, cp.RadiusM)
			}
		}
		return nil
	},
}

var routesPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch patrol routes from the server and cache them",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		routes, err := remote.NewCheckpointHandler(a.client).Pull(cmd.Context())
		if err != nil {
			return err
		}
		if err := route.SaveFile(a.cfg.RoutesPath(), routes); err != nil {
			return err
		}
		fmt.Printf("%s %d route(s) cached to %s\n",
			ui.RenderSuccess("Pulled"), len(routes), a.cfg.RoutesPath())
		return nil
	},
}

func init() {
	routesCmd.AddCommand(routesPullCmd)
	rootCmd.AddCommand(routesCmd)
}
