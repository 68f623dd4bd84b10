package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return newPostgresStore(mock, nil), mock
}

func TestPostgresStore_CommitWeek(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM weekly_stats WHERE season = \$1 AND week = \$2`).
		WithArgs(2025, 1).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"weekly_stats"}, weeklyColumns).WillReturnResult(3)
	mock.ExpectExec(`DELETE FROM season_totals WHERE season = \$1`).
		WithArgs(2025).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO season_totals .* GROUP BY player_id, season`).
		WithArgs(2025).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))
	mock.ExpectCommit()

	n, err := s.CommitWeek(context.Background(), model.NewUnit(2025, 1), week1())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitWeek_RecomputeFailsRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM weekly_stats`).WithArgs(2025, 1).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"weekly_stats"}, weeklyColumns).WillReturnResult(3)
	mock.ExpectExec(`DELETE FROM season_totals`).WithArgs(2025).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO season_totals`).WithArgs(2025).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.CommitWeek(context.Background(), model.NewUnit(2025, 1), week1())
	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "2025 week 1", se.Unit)
	assert.Contains(t, err.Error(), "recompute season totals")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitWeek_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM weekly_stats`).WithArgs(2025, 1).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"weekly_stats"}, weeklyColumns).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, err := s.CommitWeek(context.Background(), model.NewUnit(2025, 1), week1())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO weekly_stats")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitWeek_EmptyIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.CommitWeek(context.Background(), model.NewUnit(2025, 1), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitSeasonTotals(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	for _, table := range []string{"season_totals", "weekly_stats", "participation"} {
		mock.ExpectExec(`DELETE FROM ` + table + ` WHERE season = \$1`).
			WithArgs(2019).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
	}
	mock.ExpectCopyFrom(pgx.Identifier{"season_totals"}, seasonColumns).WillReturnResult(1)
	mock.ExpectCommit()

	n, err := s.CommitSeasonTotals(context.Background(), 2019, []model.SeasonTotal{
		{PlayerID: "p1", PlayerName: "Patrick Mahomes", Position: model.PositionQB, Team: "KC", Season: 2019},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitSlate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM slate_prices`).
		WithArgs(2025, 4, "main").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_slate_prices"}, slateColumns).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.CommitSlate(context.Background(), 2025, 4, "main", []model.SlateEntry{
		{PlayerID: "1", PlayerName: "Star", Position: model.PositionQB, Team: "BUF", Price: decimal.RequireFromString("8200")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitParticipation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	pct := 87.5
	merged := []model.WeeklyRecord{{PlayerID: "wr1", Season: 2025, Week: 1, ParticipationPct: &pct}, {PlayerID: "te1", Season: 2025, Week: 1}}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM participation`).WithArgs(2025, 1).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_participation"}, participationColumns).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE weekly_stats SET participation_pct`).
		WithArgs(87.5, "wr1", 2025, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := s.CommitParticipation(context.Background(), model.NewUnit(2025, 1), []model.ParticipationRecord{
		{PlayerID: "DiggSt00", PlayerName: "Stefon Diggs", Position: model.PositionWR, Team: "NE", Season: 2025, Week: 1, OffenseSnaps: 50, OffensePct: 87.5},
	}, merged)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitInjuries(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	fetched := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM injuries`).WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"injuries"}, injuryColumns).WillReturnResult(1)
	mock.ExpectCommit()

	n, err := s.CommitInjuries(context.Background(), []model.InjuryRecord{
		{PlayerID: "KelcTr00", PlayerName: "Travis Kelce", Team: "KC", Position: "TE", Status: "Out", FetchedAt: fetched},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReadInjuries(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	fetched := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM injuries WHERE 1 = 1 AND team = \$1 AND position IN \(\$2, \$3, \$4, \$5, \$6\) ORDER BY team, player_name`).
		WithArgs("KC", "QB", "RB", "WR", "TE", "K").
		WillReturnRows(pgxmock.NewRows(injuryColumns).
			AddRow("KelcTr00", "Travis Kelce", "KC", "TE", "Out", "Ankle", "", fetched))

	got, err := s.ReadInjuries(context.Background(), model.InjuryFilter{Team: "kc"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Out", got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReadWeekly(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM weekly_stats WHERE season = \$1 AND week BETWEEN \$2 AND \$3 AND position = \$4`).
		WithArgs(2025, 3, 3, "QB").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	cols := weeklyColumns
	vals := []any{"qb1", "Josh Allen", "QB", "BUF", "MIA", 2025, 3, 300, 2, 1, 6, 40, 0, 0, 0, 0, 0, 0, nil, 22.0}
	mock.ExpectQuery(`SELECT player_id, .* FROM weekly_stats WHERE .* ORDER BY fantasy_points DESC, player_id, week LIMIT \$5 OFFSET \$6`).
		WithArgs(2025, 3, 3, "QB", 100, 0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(vals...))

	q := query(2025, 3, 3)
	q.Position = "QB"
	rows, total, err := s.ReadWeekly(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, model.PositionQB, rows[0].Position)
	assert.Equal(t, 300, rows[0].PassingYards)
	assert.Nil(t, rows[0].ParticipationPct)
	assert.InDelta(t, 22.0, rows[0].FantasyPoints, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReadWeekly_ErrorIsStoreError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT`).WithArgs(2025, 1, 1).WillReturnError(errors.New("connection reset"))

	_, _, err := s.ReadWeekly(context.Background(), query(2025, 1, 1))
	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "read weekly", se.Op)
}

func TestPostgresStore_ReadSlate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM slate_prices WHERE season = \$1 AND week = \$2 AND slate_id = \$3 ORDER BY price DESC`).
		WithArgs(2025, 4, "main").
		WillReturnRows(pgxmock.NewRows(slateColumns).
			AddRow("2", "Star", "QB", "BUF", 2025, 4, "main", toNumeric(decimal.RequireFromString("8200.50")), 24.3))

	got, err := s.ReadSlate(context.Background(), model.SlateFilter{Season: 2025, Week: 4, SlateID: "main"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("8200.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RefreshLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO refresh_log`).
		WithArgs("run-1", 2025, 3).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`UPDATE refresh_log SET status = 'committed'`).
		WithArgs(int64(120), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE refresh_log SET status = 'failed'`).
		WithArgs("boom", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	now := time.Now()
	errMsg := "boom"
	mock.ExpectQuery(`SELECT id, run_id, season, week, status, started_at, completed_at, row_count, error`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "run_id", "season", "week", "status", "started_at", "completed_at", "row_count", "error"}).
			AddRow(int64(7), "run-1", 2025, 3, "failed", now, &now, int64(0), &errMsg))

	id, err := s.StartUnit(ctx, "run-1", model.NewUnit(2025, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, s.CompleteUnit(ctx, id, 120))
	require.NoError(t, s.FailUnit(ctx, id, "boom"))

	entries, err := s.ListRefreshLog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.UnitFailed, entries[0].Status)
	assert.Equal(t, "boom", entries[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	t.Run("applies pending", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		mock.ExpectExec(`pg_advisory_lock`).WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectQuery(`SELECT filename FROM schema_migrations`).WillReturnRows(pgxmock.NewRows([]string{"filename"}))
		for _, name := range names {
			mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
			mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs(name).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		mock.ExpectExec(`pg_advisory_unlock`).WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))

		require.NoError(t, s.Migrate(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		applied := pgxmock.NewRows([]string{"filename"})
		for _, name := range names {
			applied.AddRow(name)
		}
		mock.ExpectExec(`pg_advisory_lock`).WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectQuery(`SELECT filename FROM schema_migrations`).WillReturnRows(applied)
		mock.ExpectExec(`pg_advisory_unlock`).WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))

		require.NoError(t, s.Migrate(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock failure", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		mock.ExpectExec(`pg_advisory_lock`).WithArgs(migrationLockID).WillReturnError(errors.New("timeout"))

		err := s.Migrate(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "advisory lock")
	})

	t.Run("holds one connection", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		var acquired, released int
		s.acquire = func(context.Context) (migrationConn, func(), error) {
			acquired++
			return mock, func() { released++ }, nil
		}
		applied := pgxmock.NewRows([]string{"filename"})
		for _, name := range names {
			applied.AddRow(name)
		}
		mock.ExpectExec(`pg_advisory_lock`).WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectQuery(`SELECT filename FROM schema_migrations`).WillReturnRows(applied)
		mock.ExpectExec(`pg_advisory_unlock`).WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))

		require.NoError(t, s.Migrate(context.Background()))
		assert.Equal(t, 1, acquired)
		assert.Equal(t, 1, released)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("acquire failure", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		s.acquire = func(context.Context) (migrationConn, func(), error) {
			return nil, nil, errors.New("pool exhausted")
		}

		err := s.Migrate(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "acquire migration connection")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
