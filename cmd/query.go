package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/statline/internal/cache"
	"github.com/sells-group/statline/internal/model"
	"github.com/sells-group/statline/internal/query"
	"github.com/sells-group/statline/internal/warehouse"
)

var (
	queryParams model.QueryParams
	queryOutput string

	topFilter    model.TopFilter
	searchLimit  int
	trendFilter  model.TrendFilter
	compareStats []string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query player stats from the warehouse",
	Long: "Reads stats the way the API does: historical seasons return season totals, current seasons " +
		"return totals, a single week, or per-player sums over a week range.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuery(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		page, err := svc.Query(cmd.Context(), queryParams)
		if err != nil {
			return err
		}
		if queryOutput != outputTable {
			return writeStructured(os.Stdout, queryOutput, page)
		}
		formatStatRows(os.Stdout, page.Rows)
		fmt.Printf("\npage %d of %d (%d rows, source %s)\n", page.Page, page.TotalPages, page.Total, page.Source)
		return nil
	},
}

var queryTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the season leaders of one stat",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuery(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		rows, err := svc.TopPerformers(cmd.Context(), topFilter)
		if err != nil {
			return err
		}
		return printRows(rows)
	},
}

var querySearchCmd = &cobra.Command{
	Use:   "search NAME",
	Short: "Find players by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuery(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		matches, err := svc.SearchPlayers(cmd.Context(), args[0], queryParams.Season, searchLimit)
		if err != nil {
			return err
		}
		if queryOutput != outputTable {
			return writeStructured(os.Stdout, queryOutput, matches)
		}
		for _, m := range matches {
			fmt.Printf("%-28s %-3s %-4s %d  %.2f\n", m.PlayerName, m.Position, m.Team, m.Season, m.FantasyPoints)
		}
		return nil
	},
}

var queryTrendCmd = &cobra.Command{
	Use:   "trend NAME...",
	Short: "Show week-by-week lines for players",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuery(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		f := trendFilter
		f.Names = args
		rows, err := svc.PlayerTrend(cmd.Context(), f)
		if err != nil {
			return err
		}
		return printRows(rows)
	},
}

var queryCompareCmd = &cobra.Command{
	Use:   "compare NAME NAME...",
	Short: "Compare season totals of 2 to 10 players",
	Args:  cobra.RangeArgs(model.MinCompareNames, model.MaxCompareNames),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuery(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := svc.Compare(cmd.Context(), model.CompareFilter{
			Names:  args,
			Season: queryParams.Season,
			Stats:  compareStats,
		})
		if err != nil {
			return err
		}
		if queryOutput != outputTable {
			return writeStructured(os.Stdout, queryOutput, out)
		}
		formatComparison(os.Stdout, out)
		return nil
	},
}

var querySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show per-position totals and leaders of a season",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuery(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := svc.Summary(cmd.Context(), queryParams.Season)
		if err != nil {
			return err
		}
		if queryOutput != outputTable {
			return writeStructured(os.Stdout, queryOutput, out)
		}
		formatSeasonSummary(os.Stdout, out)
		return nil
	},
}

func printRows(rows []model.StatRow) error {
	if queryOutput != outputTable {
		return writeStructured(os.Stdout, queryOutput, rows)
	}
	formatStatRows(os.Stdout, rows)
	return nil
}

// openQuery opens the warehouse behind a query service with a private
// cache.
func openQuery(ctx context.Context) (*query.Service, func(), error) {
	store, err := warehouse.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	svc := query.New(store, cache.New[any](cfg.Cache.TTL(), cfg.Cache.MaxEntries), cfg.Warehouse.Policy())
	return svc, func() { _ = store.Close() }, nil
}

func init() {
	f := queryCmd.Flags()
	f.IntVar(&queryParams.Week, "week", 0, "single week")
	f.IntVar(&queryParams.WeekStart, "week-start", 0, "first week of a range")
	f.IntVar(&queryParams.WeekEnd, "week-end", 0, "last week of a range")
	f.StringVar(&queryParams.Position, "position", "", "QB, RB, WR, TE or All")
	f.StringVar(&queryParams.Team, "team", "", "team code or All")
	f.StringVar(&queryParams.Player, "player", "", "player name substring")
	f.IntVar(&queryParams.Page, "page", 1, "page number")
	f.IntVar(&queryParams.PageSize, "page-size", model.DefaultPageSize, "rows per page")
	f.StringVar(&queryParams.Sort, "sort", "fantasy_points", "sort column")

	queryCmd.PersistentFlags().IntVar(&queryParams.Season, "season", 0, "season")
	queryCmd.PersistentFlags().StringVarP(&queryOutput, "output", "o", outputTable, "output format: table, json or yaml")

	queryTopCmd.Flags().StringVar(&topFilter.Stat, "stat", "fantasy_points", "stat column to rank by")
	queryTopCmd.Flags().StringVar(&topFilter.Position, "position", "", "QB, RB, WR, TE or All")
	queryTopCmd.Flags().IntVar(&topFilter.Limit, "limit", 10, "number of players")
	queryTopCmd.PreRun = func(cmd *cobra.Command, args []string) { topFilter.Season = queryParams.Season }

	querySearchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum matches")

	queryTrendCmd.Flags().IntVar(&trendFilter.WeekStart, "week-start", 0, "first week")
	queryTrendCmd.Flags().IntVar(&trendFilter.WeekEnd, "week-end", 0, "last week")
	queryTrendCmd.PreRun = func(cmd *cobra.Command, args []string) { trendFilter.Season = queryParams.Season }

	queryCompareCmd.Flags().StringSliceVar(&compareStats, "stat", nil, "stat columns to show (default all)")

	queryCmd.AddCommand(queryTopCmd, querySearchCmd, queryTrendCmd, queryCompareCmd, querySummaryCmd)
	rootCmd.AddCommand(queryCmd)
}
