package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pcg-live/monitor/internal/health"
	"github.com/pcg-live/monitor/internal/locale"
	"github.com/pcg-live/monitor/internal/monitor"
	"github.com/pcg-live/monitor/internal/notify"
	"github.com/pcg-live/monitor/internal/scheduler"
	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/ws"
)

var (
	servePort      int
	serveHost      string
	serveAutostart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring sessions behind the HTTP/websocket API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "override server port")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "override listen host")
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "start every session immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	catalog, err := locale.Load(cfg.Locale.File)
	if err != nil {
		return err
	}
	text := func(key string) string { return catalog.Lookup(cfg.Locale.Default, key) }

	store := session.NewStore()
	broadcaster := ws.NewBroadcaster(store, cfg.Broadcast.Throttle, cfg.Broadcast.SnapshotInterval, cfg.Broadcast.MaxConnections, text, logger)
	defer broadcaster.Stop()
	tracker := health.NewTracker(store.RunningCount)

	ticker := scheduler.NewTicker()
	defer ticker.Close()

	manager := monitor.NewManager(cfg.Monitor, ticker, logger.Named("monitor"),
		monitor.WithSink(broadcaster),
		monitor.WithNotifier(notify.NewFanout(notify.NewLogger(logger), tracker, broadcaster)),
	)
	defer manager.Close()

	for _, id := range cfg.Sessions {
		s, err := manager.Create(id)
		if err != nil {
			logger.Error("session skipped", zap.String("session", id), zap.Error(err))
			continue
		}
		if serveAutostart {
			s.Start()
		}
	}

	server := ws.NewServer(cfg.Server, manager, store, broadcaster, catalog, tracker, cfg.Locale.Default, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, server.Handler(), logger)
	if ctx.Err() != nil {
		logger.Info("shutting down")
	}
	return err
}

