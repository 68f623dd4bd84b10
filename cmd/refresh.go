package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/statline/internal/refresh"
)

var (
	refreshSeasons []int
	refreshWeeks   []int
	refreshForce   bool
	refreshOutput  string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Load missing weeks and seasons into the warehouse",
	Long: "Fetches, transforms and commits every (season, week) unit not yet in the warehouse. " +
		"Historical seasons load as season totals; current seasons load week by week. " +
		"Use --force to reload units that are already present.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		seasons := refreshSeasons
		if len(seasons) == 0 {
			seasons = defaultSeasons(cfg, time.Now())
		}

		report, err := a.Refresher.Run(ctx, refresh.Request{
			Seasons: seasons,
			Weeks:   refreshWeeks,
			Force:   refreshForce,
		})
		if err != nil {
			return err
		}

		if refreshOutput == outputTable {
			formatRefreshReport(os.Stdout, report)
			return nil
		}
		return writeStructured(os.Stdout, refreshOutput, report)
	},
}

func init() {
	refreshCmd.Flags().IntSliceVar(&refreshSeasons, "season", nil, "seasons to refresh (default from config or the current season)")
	refreshCmd.Flags().IntSliceVar(&refreshWeeks, "week", nil, "weeks of current seasons to refresh (default all)")
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "reload units that are already present")
	refreshCmd.Flags().StringVarP(&refreshOutput, "output", "o", outputTable, "output format: table, json or yaml")
	rootCmd.AddCommand(refreshCmd)
}
