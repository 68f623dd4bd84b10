package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/model"
)

var (
	injuryFilter  model.InjuryFilter
	injurySummary bool
	injuryOutput  string
)

var injuriesCmd = &cobra.Command{
	Use:   "injuries",
	Short: "Load and show the league injury report",
}

var injuriesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the stored injury report with the current one",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Refresher.RefreshInjuries(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("injuries refreshed", zap.Int64("rows", n))
		return nil
	},
}

var injuriesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored injury report",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuery(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if injurySummary {
			s, err := svc.InjurySummary(cmd.Context())
			if err != nil {
				return err
			}
			if injuryOutput != outputTable {
				return writeStructured(os.Stdout, injuryOutput, s)
			}
			formatInjurySummary(os.Stdout, s)
			return nil
		}

		report, err := svc.Injuries(cmd.Context(), injuryFilter)
		if err != nil {
			return err
		}
		if injuryOutput != outputTable {
			return writeStructured(os.Stdout, injuryOutput, report)
		}
		formatInjuries(os.Stdout, report)
		return nil
	},
}

func init() {
	f := injuriesShowCmd.Flags()
	f.StringVar(&injuryFilter.Team, "team", "", "team code")
	f.StringVar(&injuryFilter.Position, "position", "", "position")
	f.BoolVar(&injuryFilter.All, "all", false, "include non-skill positions")
	f.BoolVar(&injurySummary, "summary", false, "show counts instead of rows")
	f.StringVarP(&injuryOutput, "output", "o", outputTable, "output format: table, json or yaml")

	injuriesCmd.AddCommand(injuriesRefreshCmd, injuriesShowCmd)
	rootCmd.AddCommand(injuriesCmd)
}
