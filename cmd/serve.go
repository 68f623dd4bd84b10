package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/monitoring"
	"github.com/sells-group/statline/internal/refresh"
	"github.com/sells-group/statline/internal/scheduler"
	"github.com/sells-group/statline/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stats API and run scheduled refreshes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Refresh.Schedule != "" {
			sched, err := scheduler.New(ctx, a.Refresher, cfg.Refresh.Schedule, refresh.Request{
				Seasons: defaultSeasons(cfg, time.Now()),
			})
			if err != nil {
				return err
			}
			sched.WithInjuries(cfg.Refresh.Injuries).Start()
			defer func() { <-sched.Stop().Done() }()
		}

		if cfg.Monitoring.WebhookURL != "" {
			collector := monitoring.NewCollector(a.Store, time.Duration(cfg.Monitoring.StuckAfterMinutes)*time.Minute)
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring, a.Refresher)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := server.New(server.Deps{
			Query:     a.Query,
			Refresher: a.Refresher,
			Warehouse: a.Store,
			Metrics:   a.Metrics,
		}, cfg.Server.CORSOrigins)

		zap.L().Info("serving",
			zap.Int("port", port),
			zap.String("schedule", cfg.Refresh.Schedule),
		)
		return srv.ListenAndServe(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default from server.port)")
	rootCmd.AddCommand(serveCmd)
}
