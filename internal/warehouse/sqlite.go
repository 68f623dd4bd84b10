package warehouse

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sells-group/statline/internal/model"
)

// SQLiteStore implements Store on a single-file modernc.org/sqlite database.
type SQLiteStore struct {
	reader
	db   *sql.DB
	hook hookFunc
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: pragmas are per connection and writers serialize anyway.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db}
	s.reader = reader{q: s, d: sqliteDialect}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS weekly_stats (
	player_id         TEXT NOT NULL,
	player_name       TEXT NOT NULL,
	position          TEXT NOT NULL,
	team              TEXT NOT NULL,
	opponent          TEXT NOT NULL DEFAULT '',
	season            INTEGER NOT NULL,
	week              INTEGER NOT NULL,
	passing_yards     INTEGER NOT NULL DEFAULT 0,
	passing_tds       INTEGER NOT NULL DEFAULT 0,
	interceptions     INTEGER NOT NULL DEFAULT 0,
	rush_attempts     INTEGER NOT NULL DEFAULT 0,
	rushing_yards     INTEGER NOT NULL DEFAULT 0,
	rushing_tds       INTEGER NOT NULL DEFAULT 0,
	receptions        INTEGER NOT NULL DEFAULT 0,
	targets           INTEGER NOT NULL DEFAULT 0,
	receiving_yards   INTEGER NOT NULL DEFAULT 0,
	receiving_tds     INTEGER NOT NULL DEFAULT 0,
	fumbles_lost      INTEGER NOT NULL DEFAULT 0,
	participation_pct REAL,
	fantasy_points    REAL NOT NULL DEFAULT 0,
	loaded_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (player_id, season, week)
);

CREATE INDEX IF NOT EXISTS idx_weekly_stats_season_week ON weekly_stats(season, week);
CREATE INDEX IF NOT EXISTS idx_weekly_stats_team_season ON weekly_stats(team, season);
CREATE INDEX IF NOT EXISTS idx_weekly_stats_position_season ON weekly_stats(position, season);
CREATE INDEX IF NOT EXISTS idx_weekly_stats_points ON weekly_stats(fantasy_points DESC);

CREATE TABLE IF NOT EXISTS season_totals (
	player_id          TEXT NOT NULL,
	player_name        TEXT NOT NULL,
	position           TEXT NOT NULL,
	team               TEXT NOT NULL,
	season             INTEGER NOT NULL,
	passing_yards      INTEGER NOT NULL DEFAULT 0,
	passing_tds        INTEGER NOT NULL DEFAULT 0,
	interceptions      INTEGER NOT NULL DEFAULT 0,
	rush_attempts      INTEGER NOT NULL DEFAULT 0,
	rushing_yards      INTEGER NOT NULL DEFAULT 0,
	rushing_tds        INTEGER NOT NULL DEFAULT 0,
	receptions         INTEGER NOT NULL DEFAULT 0,
	targets            INTEGER NOT NULL DEFAULT 0,
	receiving_yards    INTEGER NOT NULL DEFAULT 0,
	receiving_tds      INTEGER NOT NULL DEFAULT 0,
	fumbles_lost       INTEGER NOT NULL DEFAULT 0,
	games_played       INTEGER NOT NULL DEFAULT 0,
	fantasy_points     REAL NOT NULL DEFAULT 0,
	avg_fantasy_points REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, season)
);

CREATE INDEX IF NOT EXISTS idx_season_totals_team_season ON season_totals(team, season);
CREATE INDEX IF NOT EXISTS idx_season_totals_position_season ON season_totals(position, season);
CREATE INDEX IF NOT EXISTS idx_season_totals_points ON season_totals(fantasy_points DESC);

CREATE TABLE IF NOT EXISTS participation (
	player_id     TEXT NOT NULL,
	player_name   TEXT NOT NULL,
	position      TEXT NOT NULL,
	team          TEXT NOT NULL,
	season        INTEGER NOT NULL,
	week          INTEGER NOT NULL,
	offense_snaps INTEGER NOT NULL DEFAULT 0,
	offense_pct   REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, season, week)
);

CREATE TABLE IF NOT EXISTS slate_prices (
	player_id        TEXT NOT NULL,
	player_name      TEXT NOT NULL,
	position         TEXT NOT NULL,
	team             TEXT NOT NULL,
	season           INTEGER NOT NULL,
	week             INTEGER NOT NULL,
	slate_id         TEXT NOT NULL,
	price            NUMERIC NOT NULL,
	projected_points REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, season, week, slate_id)
);

CREATE TABLE IF NOT EXISTS refresh_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	season       INTEGER NOT NULL,
	week         INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'loading',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	row_count    INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_refresh_log_started ON refresh_log(started_at);

CREATE TABLE IF NOT EXISTS injuries (
	player_id       TEXT PRIMARY KEY,
	player_name     TEXT NOT NULL,
	team            TEXT NOT NULL,
	position        TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT '',
	injury          TEXT NOT NULL DEFAULT '',
	practice_status TEXT NOT NULL DEFAULT '',
	fetched_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_injuries_team ON injuries(team);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) (rowIter, func(), error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	return rows, func() { rows.Close() }, nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// insertAll runs one prepared INSERT per row.
func insertAll(ctx context.Context, tx *sql.Tx, stmtSQL string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, eris.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "insert row %d", i+1)
		}
	}
	return int64(len(rows)), nil
}

// CommitWeek replaces one (season, week) of weekly rows and recomputes that
// season's totals in a single transaction. An empty batch is a no-op.
func (s *SQLiteStore) CommitWeek(ctx context.Context, unit model.RefreshUnit, records []model.WeeklyRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := checkUnit(unit, records); err != nil {
		return 0, &StoreError{Op: "commit week", Unit: unit.String(), Err: err}
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = weeklyValues(r)
	}

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+TableWeekly+" WHERE season = ? AND week = ?", unit.Season, unit.Week); err != nil {
			return eris.Wrap(err, "delete weekly rows")
		}
		if err := s.hook.at("delete"); err != nil {
			return err
		}

		inserted, err := insertAll(ctx, tx, insertSQL(sqliteDialect, TableWeekly, weeklyColumns), rows)
		if err != nil {
			return err
		}
		if err := s.hook.at("insert"); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM "+TableSeasonTotals+" WHERE season = ?", unit.Season); err != nil {
			return eris.Wrap(err, "delete season totals")
		}
		if _, err := tx.ExecContext(ctx, recomputeSQL(sqliteDialect), unit.Season); err != nil {
			return eris.Wrap(err, "recompute season totals")
		}
		if err := s.hook.at("recompute"); err != nil {
			return err
		}
		n = inserted
		return nil
	})
	if err != nil {
		return 0, &StoreError{Op: "commit week", Unit: unit.String(), Err: err}
	}
	return n, nil
}

// CommitSeasonTotals replaces a historical season's totals. Weekly and
// participation rows of that season are dropped.
func (s *SQLiteStore) CommitSeasonTotals(ctx context.Context, season int, totals []model.SeasonTotal) (int64, error) {
	if len(totals) == 0 {
		return 0, nil
	}
	unit := model.NewUnit(season, 0).String()

	rows := make([][]any, len(totals))
	for i, t := range totals {
		if t.Season != season {
			return 0, &StoreError{Op: "commit season totals", Unit: unit, Err: eris.Wrapf(ErrUnitMismatch, "%s", t.Key())}
		}
		rows[i] = seasonValues(t)
	}

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{TableSeasonTotals, TableWeekly, TableParticipation} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE season = ?", season); err != nil {
				return eris.Wrapf(err, "delete %s", table)
			}
		}
		inserted, err := insertAll(ctx, tx, insertSQL(sqliteDialect, TableSeasonTotals, seasonColumns), rows)
		if err != nil {
			return err
		}
		if err := s.hook.at("insert"); err != nil {
			return err
		}
		n = inserted
		return nil
	})
	if err != nil {
		return 0, &StoreError{Op: "commit season totals", Unit: unit, Err: err}
	}
	return n, nil
}

// CommitParticipation replaces the snap shares of one unit and copies the
// merged shares onto the unit's weekly rows. The refresh path merges shares
// before CommitWeek and passes nil merged, so only the snap table is written
// here; a non-nil merged backfills rows committed without their shares.
func (s *SQLiteStore) CommitParticipation(ctx context.Context, unit model.RefreshUnit, parts []model.ParticipationRecord, merged []model.WeeklyRecord) (int64, error) {
	if len(parts) == 0 {
		return 0, nil
	}
	rows := participationRows(parts)

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+TableParticipation+" WHERE season = ? AND week = ?", unit.Season, unit.Week); err != nil {
			return eris.Wrap(err, "delete participation")
		}
		inserted, err := insertAll(ctx, tx, insertSQL(sqliteDialect, TableParticipation, participationColumns), rows)
		if err != nil {
			return err
		}
		for _, r := range merged {
			if r.ParticipationPct == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE "+TableWeekly+" SET participation_pct = ? WHERE player_id = ? AND season = ? AND week = ?",
				*r.ParticipationPct, r.PlayerID, r.Season, r.Week,
			); err != nil {
				return eris.Wrapf(err, "update participation for %s", r.Key())
			}
		}
		n = inserted
		return nil
	})
	if err != nil {
		return 0, &StoreError{Op: "commit participation", Unit: unit.String(), Err: err}
	}
	return n, nil
}

// CommitSlate replaces every entry of one slate.
func (s *SQLiteStore) CommitSlate(ctx context.Context, season, week int, slateID string, entries []model.SlateEntry) (int64, error) {
	unit := model.NewUnit(season, week).String() + " slate " + slateID
	if slateID == "" {
		return 0, &StoreError{Op: "commit slate", Unit: unit, Err: eris.New("slate id is required")}
	}

	var rows [][]any
	for _, e := range dedupeSlate(entries) {
		rows = append(rows, []any{
			e.PlayerID, e.PlayerName, string(e.Position), e.Team, season, week, slateID,
			e.Price.String(), e.ProjectedPoints,
		})
	}

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+TableSlates+" WHERE season = ? AND week = ? AND slate_id = ?",
			season, week, slateID,
		); err != nil {
			return eris.Wrap(err, "delete slate")
		}
		inserted, err := insertAll(ctx, tx, insertSQL(sqliteDialect, TableSlates, slateColumns), rows)
		n = inserted
		return err
	})
	if err != nil {
		return 0, &StoreError{Op: "commit slate", Unit: unit, Err: err}
	}
	return n, nil
}

// CommitInjuries replaces the stored injury report.
func (s *SQLiteStore) CommitInjuries(ctx context.Context, report []model.InjuryRecord) (int64, error) {
	rows := injuryRows(report)
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+TableInjuries); err != nil {
			return eris.Wrap(err, "delete injuries")
		}
		inserted, err := insertAll(ctx, tx, insertSQL(sqliteDialect, TableInjuries, injuryColumns), rows)
		n = inserted
		return err
	})
	if err != nil {
		return 0, &StoreError{Op: "commit injuries", Err: err}
	}
	return n, nil
}

// ReadSlate returns a slate's entries, highest price first.
func (s *SQLiteStore) ReadSlate(ctx context.Context, f model.SlateFilter) ([]model.SlateEntry, error) {
	a := &args{d: sqliteDialect}
	rows, err := s.db.QueryContext(ctx, slateSelect(a, f), a.vals...)
	if err != nil {
		return nil, &StoreError{Op: "read slate", Err: err}
	}
	defer rows.Close()

	var out []model.SlateEntry
	for rows.Next() {
		var e model.SlateEntry
		var pos, price string
		if err := rows.Scan(&e.PlayerID, &e.PlayerName, &pos, &e.Team, &e.Season, &e.Week, &e.SlateID, &price, &e.ProjectedPoints); err != nil {
			return nil, &StoreError{Op: "read slate", Err: err}
		}
		e.Position = model.Position(pos)
		d, err := decimal.NewFromString(strings.TrimSpace(price))
		if err != nil {
			return nil, &StoreError{Op: "read slate", Err: eris.Wrapf(err, "price %q", price)}
		}
		e.Price = d
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "read slate", Err: err}
	}
	return out, nil
}

// StartUnit records a unit entering the loading state.
func (s *SQLiteStore) StartUnit(ctx context.Context, runID string, unit model.RefreshUnit) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_log (run_id, season, week, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, unit.Season, unit.Week, string(model.UnitLoading), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "refresh log: start %s", unit)
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "refresh log: last insert id")
}

// CompleteUnit marks a logged unit committed.
func (s *SQLiteStore) CompleteUnit(ctx context.Context, id int64, rows int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_log SET status = ?, completed_at = ?, row_count = ? WHERE id = ?`,
		string(model.UnitCommitted), time.Now().UTC(), rows, id,
	)
	if err != nil {
		return eris.Wrapf(err, "refresh log: complete %d", id)
	}
	return checkRowsAffected(res, id)
}

// FailUnit marks a logged unit failed.
func (s *SQLiteStore) FailUnit(ctx context.Context, id int64, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_log SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.UnitFailed), time.Now().UTC(), msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "refresh log: fail %d", id)
	}
	return checkRowsAffected(res, id)
}

// ListRefreshLog returns the most recent log entries first.
func (s *SQLiteStore) ListRefreshLog(ctx context.Context, limit int) ([]model.RefreshLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, season, week, status, started_at, completed_at, row_count, error
		 FROM refresh_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "refresh log: list")
	}
	defer rows.Close()

	var out []model.RefreshLogEntry
	for rows.Next() {
		var e model.RefreshLogEntry
		var status string
		var errStr sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Season, &e.Week, &status, &e.StartedAt, &e.CompletedAt, &e.Rows, &errStr); err != nil {
			return nil, eris.Wrap(err, "refresh log: scan")
		}
		e.Status = model.UnitStatus(status)
		e.Error = errStr.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "refresh log: iterate")
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("refresh log entry not found: %d", id)
	}
	return nil
}
