package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/model"
	"github.com/sells-group/statline/internal/warehouse"
)

var (
	statusLimit  int
	statusOutput string
)

// statusReport is the structured form of the status command.
type statusReport struct {
	Warehouse  *model.WarehouseStats   `json:"warehouse"`
	RefreshLog []model.RefreshLogEntry `json:"refresh_log"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show warehouse contents and refresh history",
	Long:  "Displays row counts per table and season, followed by the most recent refresh log entries.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := warehouse.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "warehouse status")
		}
		entries, err := store.ListRefreshLog(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "refresh log")
		}

		if statusOutput != outputTable {
			return writeStructured(os.Stdout, statusOutput, statusReport{Warehouse: stats, RefreshLog: entries})
		}

		if len(stats.Counts) == 0 {
			zap.L().Info("warehouse is empty, run 'statline refresh' to load data")
		} else {
			formatWarehouseStats(os.Stdout, stats)
		}
		if len(entries) > 0 {
			fmt.Println()
			formatRefreshLog(os.Stdout, entries)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "refresh log entries to show")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", outputTable, "output format: table, json or yaml")
	rootCmd.AddCommand(statusCmd)
}
