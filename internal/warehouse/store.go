// Package warehouse persists weekly records, season totals, participation
// and priced slates, and answers the read queries of the query layer.
package warehouse

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/statline/internal/model"
)

// Table names.
const (
	TableWeekly        = "weekly_stats"
	TableSeasonTotals  = "season_totals"
	TableParticipation = "participation"
	TableSlates        = "slate_prices"
	TableRefreshLog    = "refresh_log"
	TableInjuries      = "injuries"
)

// Store is the warehouse persistence interface. Every Commit method is
// atomic: on error nothing it was asked to write is visible.
type Store interface {
	// Writes
	CommitWeek(ctx context.Context, unit model.RefreshUnit, records []model.WeeklyRecord) (int64, error)
	CommitSeasonTotals(ctx context.Context, season int, totals []model.SeasonTotal) (int64, error)
	CommitParticipation(ctx context.Context, unit model.RefreshUnit, parts []model.ParticipationRecord, merged []model.WeeklyRecord) (int64, error)
	CommitSlate(ctx context.Context, season, week int, slateID string, entries []model.SlateEntry) (int64, error)
	CommitInjuries(ctx context.Context, report []model.InjuryRecord) (int64, error)

	// Reads
	PresentUnits(ctx context.Context, seasons []int) (map[string]bool, error)
	ReadWeekly(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error)
	ReadSeasonTotals(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error)
	SumWeekly(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error)
	TopPerformers(ctx context.Context, f model.TopFilter) ([]model.StatRow, error)
	SearchPlayers(ctx context.Context, name string, season, limit int) ([]model.PlayerMatch, error)
	PlayerTrend(ctx context.Context, f model.TrendFilter) ([]model.StatRow, error)
	ReadSlate(ctx context.Context, f model.SlateFilter) ([]model.SlateEntry, error)
	ReadInjuries(ctx context.Context, f model.InjuryFilter) ([]model.InjuryRecord, error)
	Stats(ctx context.Context) (*model.WarehouseStats, error)

	// Refresh log
	StartUnit(ctx context.Context, runID string, unit model.RefreshUnit) (int64, error)
	CompleteUnit(ctx context.Context, id int64, rows int64) error
	FailUnit(ctx context.Context, id int64, msg string) error
	ListRefreshLog(ctx context.Context, limit int) ([]model.RefreshLogEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// StoreError wraps a failed warehouse operation. The transaction it ran in
// has been rolled back.
type StoreError struct {
	Op   string
	Unit string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("warehouse: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("warehouse: %s %s: %v", e.Op, e.Unit, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrUnitMismatch is returned when a record does not belong to the unit
// being committed.
var ErrUnitMismatch = eris.New("record outside commit unit")

// checkUnit verifies every record belongs to unit.
func checkUnit(unit model.RefreshUnit, records []model.WeeklyRecord) error {
	for _, r := range records {
		if r.Season != unit.Season || r.Week != unit.Week {
			return eris.Wrapf(ErrUnitMismatch, "%s in %s", r.Key(), unit.Key())
		}
	}
	return nil
}

// hookFunc lets tests inject a failure at a named step of a commit.
type hookFunc func(step string) error

func (h hookFunc) at(step string) error {
	if h == nil {
		return nil
	}
	return h(step)
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
