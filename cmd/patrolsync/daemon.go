package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/guardtrack/patrolsync/internal/daemon"
	"github.com/guardtrack/patrolsync/internal/dashboard"
	"github.com/guardtrack/patrolsync/internal/netmon"
	"github.com/guardtrack/patrolsync/internal/remote"
	"github.com/guardtrack/patrolsync/internal/ui"
)

var daemonQuiet bool

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon",
	Long: `Run patrolsync in the background: periodic sync passes, an extra
pass whenever connectivity comes back, photo spool watching, and route
cache refresh. Stops cleanly on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		cfg := a.cfg

		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile(),
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}
		defer rotator.Close()

		var out io.Writer = rotator
		if !daemonQuiet {
			out = io.MultiWriter(os.Stderr, rotator)
		}
		logger := log.New(out, "[daemon] ", log.LstdFlags)

		orch, err := a.newOrchestrator(log.New(out, "[sync] ", log.LstdFlags))
		if err != nil {
			return err
		}

		monitor, err := netmon.New(cfg.Server.URL, netmon.Config{
			Interval:     cfg.Network.ProbeInterval,
			ProbeTimeout: cfg.Network.ProbeTimeout,
			Logger:       log.New(out, "[netmon] ", log.LstdFlags),
		})
		if err != nil {
			return err
		}

		d, err := daemon.New(a.st, orch, monitor, remote.NewCheckpointHandler(a.client), &daemon.Config{
			SyncInterval:         cfg.Sync.Interval,
			RouteRefreshInterval: cfg.Sync.Interval * 12,
			SpoolDir:             cfg.SpoolDir(),
			GuardID:              cfg.Device.GuardID,
			RoutesPath:           cfg.RoutesPath(),
			Logger:               logger,
		})
		if err != nil {
			return err
		}

		if cfg.Dashboard.Enabled {
			srv := dashboard.NewServer(a.st, orch, &dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: log.New(out, "[dashboard] ", log.LstdFlags),
			})
			if err := srv.Start(); err != nil {
				return fmt.Errorf("start dashboard: %w", err)
			}
			defer srv.Stop()
			fmt.Printf("%s http://%s\n", ui.RenderAccent("Dashboard:"), srv.Addr())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println(ui.RenderDim("Daemon running. Press Ctrl+C to stop."))
		return d.Start(ctx)
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonQuiet, "quiet", false, "log to file only")
	rootCmd.AddCommand(daemonCmd)
}
