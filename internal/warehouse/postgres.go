package warehouse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/statline/internal/db"
	"github.com/sells-group/statline/internal/model"
)

// PostgresStore implements Store on a pgx pool. Bulk writes use COPY inside
// the commit transaction.
type PostgresStore struct {
	reader
	pool    db.Pool
	closeFn func()
	hook    hookFunc
	acquire func(ctx context.Context) (migrationConn, func(), error)
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Refresh log statements. pgx caches their prepared form per connection.
const (
	sqlStartUnit    = `INSERT INTO refresh_log (run_id, season, week, status, started_at) VALUES ($1, $2, $3, 'loading', now()) RETURNING id`
	sqlCompleteUnit = `UPDATE refresh_log SET status = 'committed', completed_at = now(), row_count = $1 WHERE id = $2`
	sqlFailUnit     = `UPDATE refresh_log SET status = 'failed', completed_at = now(), error = $1 WHERE id = $2`
)

// NewPostgres connects a pool and returns a store.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	s := newPostgresStore(pool, pool.Close)
	s.acquire = func(ctx context.Context) (migrationConn, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return conn, conn.Release, nil
	}
	return s, nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	s := &PostgresStore{pool: pool, closeFn: closeFn}
	s.reader = reader{q: s, d: postgresDialect}
	s.acquire = func(context.Context) (migrationConn, func(), error) {
		return pool, func() {}, nil
	}
	return s
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) (rowIter, func(), error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, err
	}
	return rows, rows.Close, nil
}

// Pool exposes the underlying pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate runs pending migrations on one connection held for the whole run.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	conn, release, err := s.acquire(ctx)
	if err != nil {
		return eris.Wrap(err, "warehouse: acquire migration connection")
	}
	defer release()
	return migratePostgres(ctx, conn)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// CommitWeek replaces one (season, week) of weekly rows and recomputes that
// season's totals in a single transaction. An empty batch is a no-op.
func (s *PostgresStore) CommitWeek(ctx context.Context, unit model.RefreshUnit, records []model.WeeklyRecord) (int64, error) {
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
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM "+TableWeekly+" WHERE season = $1 AND week = $2", unit.Season, unit.Week); err != nil {
			return eris.Wrap(err, "delete weekly rows")
		}
		if err := s.hook.at("delete"); err != nil {
			return err
		}

		copied, err := db.CopyFrom(ctx, tx, TableWeekly, weeklyColumns, rows)
		if err != nil {
			return err
		}
		if err := s.hook.at("insert"); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, "DELETE FROM "+TableSeasonTotals+" WHERE season = $1", unit.Season); err != nil {
			return eris.Wrap(err, "delete season totals")
		}
		if _, err := tx.Exec(ctx, recomputeSQL(postgresDialect), unit.Season); err != nil {
			return eris.Wrap(err, "recompute season totals")
		}
		if err := s.hook.at("recompute"); err != nil {
			return err
		}
		n = copied
		return nil
	})
	if err != nil {
		return 0, &StoreError{Op: "commit week", Unit: unit.String(), Err: err}
	}
	return n, nil
}

// CommitSeasonTotals replaces a historical season's totals. Weekly and
// participation rows of that season are dropped.
func (s *PostgresStore) CommitSeasonTotals(ctx context.Context, season int, totals []model.SeasonTotal) (int64, error) {
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
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, table := range []string{TableSeasonTotals, TableWeekly, TableParticipation} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE season = $1", season); err != nil {
				return eris.Wrapf(err, "delete %s", table)
			}
		}
		copied, err := db.CopyFrom(ctx, tx, TableSeasonTotals, seasonColumns, rows)
		if err != nil {
			return err
		}
		if err := s.hook.at("insert"); err != nil {
			return err
		}
		n = copied
		return nil
	})
	if err != nil {
		return 0, &StoreError{Op: "commit season totals", Unit: unit, Err: err}
	}
	return n, nil
}

var participationUpsert = db.UpsertConfig{
	Table:        TableParticipation,
	Columns:      participationColumns,
	ConflictKeys: []string{"player_id", "season", "week"},
}

// CommitParticipation replaces the snap shares of one unit and copies the
// merged shares onto the unit's weekly rows. The refresh path merges shares
// before CommitWeek and passes nil merged, so only the snap table is written
// here; a non-nil merged backfills rows committed without their shares.
func (s *PostgresStore) CommitParticipation(ctx context.Context, unit model.RefreshUnit, parts []model.ParticipationRecord, merged []model.WeeklyRecord) (int64, error) {
	if len(parts) == 0 {
		return 0, nil
	}
	rows := participationRows(parts)

	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM "+TableParticipation+" WHERE season = $1 AND week = $2", unit.Season, unit.Week); err != nil {
			return eris.Wrap(err, "delete participation")
		}
		upserted, err := db.UpsertTx(ctx, tx, participationUpsert, rows)
		if err != nil {
			return err
		}
		for _, r := range merged {
			if r.ParticipationPct == nil {
				continue
			}
			if _, err := tx.Exec(ctx,
				"UPDATE "+TableWeekly+" SET participation_pct = $1 WHERE player_id = $2 AND season = $3 AND week = $4",
				*r.ParticipationPct, r.PlayerID, r.Season, r.Week,
			); err != nil {
				return eris.Wrapf(err, "update participation for %s", r.Key())
			}
		}
		n = upserted
		return nil
	})
	if err != nil {
		return 0, &StoreError{Op: "commit participation", Unit: unit.String(), Err: err}
	}
	return n, nil
}

var slateUpsert = db.UpsertConfig{
	Table:        TableSlates,
	Columns:      slateColumns,
	ConflictKeys: []string{"player_id", "season", "week", "slate_id"},
}

// CommitSlate replaces every entry of one slate.
func (s *PostgresStore) CommitSlate(ctx context.Context, season, week int, slateID string, entries []model.SlateEntry) (int64, error) {
	unit := model.NewUnit(season, week).String() + " slate " + slateID
	if slateID == "" {
		return 0, &StoreError{Op: "commit slate", Unit: unit, Err: eris.New("slate id is required")}
	}

	var rows [][]any
	for _, e := range dedupeSlate(entries) {
		rows = append(rows, []any{
			e.PlayerID, e.PlayerName, string(e.Position), e.Team, season, week, slateID,
			toNumeric(e.Price), e.ProjectedPoints,
		})
	}

	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"DELETE FROM "+TableSlates+" WHERE season = $1 AND week = $2 AND slate_id = $3",
			season, week, slateID,
		); err != nil {
			return eris.Wrap(err, "delete slate")
		}
		upserted, err := db.UpsertTx(ctx, tx, slateUpsert, rows)
		n = upserted
		return err
	})
	if err != nil {
		return 0, &StoreError{Op: "commit slate", Unit: unit, Err: err}
	}
	return n, nil
}

// CommitInjuries replaces the stored injury report.
func (s *PostgresStore) CommitInjuries(ctx context.Context, report []model.InjuryRecord) (int64, error) {
	rows := injuryRows(report)
	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM "+TableInjuries); err != nil {
			return eris.Wrap(err, "delete injuries")
		}
		copied, err := db.CopyFrom(ctx, tx, TableInjuries, injuryColumns, rows)
		n = copied
		return err
	})
	if err != nil {
		return 0, &StoreError{Op: "commit injuries", Err: err}
	}
	return n, nil
}

// ReadSlate returns a slate's entries, highest price first.
func (s *PostgresStore) ReadSlate(ctx context.Context, f model.SlateFilter) ([]model.SlateEntry, error) {
	a := &args{d: postgresDialect}
	sql := slateSelect(a, f)

	rows, err := s.pool.Query(ctx, sql, a.vals...)
	if err != nil {
		return nil, &StoreError{Op: "read slate", Err: err}
	}
	defer rows.Close()

	var out []model.SlateEntry
	for rows.Next() {
		var e model.SlateEntry
		var pos string
		var price pgtype.Numeric
		if err := rows.Scan(&e.PlayerID, &e.PlayerName, &pos, &e.Team, &e.Season, &e.Week, &e.SlateID, &price, &e.ProjectedPoints); err != nil {
			return nil, &StoreError{Op: "read slate", Err: err}
		}
		e.Position = model.Position(pos)
		e.Price = fromNumeric(price)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "read slate", Err: err}
	}
	return out, nil
}

// StartUnit records a unit entering the loading state.
func (s *PostgresStore) StartUnit(ctx context.Context, runID string, unit model.RefreshUnit) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, sqlStartUnit, runID, unit.Season, unit.Week).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "refresh log: start %s", unit)
	}
	return id, nil
}

// CompleteUnit marks a logged unit committed.
func (s *PostgresStore) CompleteUnit(ctx context.Context, id int64, rows int64) error {
	_, err := s.pool.Exec(ctx, sqlCompleteUnit, rows, id)
	return eris.Wrapf(err, "refresh log: complete %d", id)
}

// FailUnit marks a logged unit failed.
func (s *PostgresStore) FailUnit(ctx context.Context, id int64, msg string) error {
	_, err := s.pool.Exec(ctx, sqlFailUnit, msg, id)
	return eris.Wrapf(err, "refresh log: fail %d", id)
}

// ListRefreshLog returns the most recent log entries first.
func (s *PostgresStore) ListRefreshLog(ctx context.Context, limit int) ([]model.RefreshLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, season, week, status, started_at, completed_at, row_count, error
		 FROM refresh_log ORDER BY started_at DESC, id DESC LIMIT $1`,
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
		var errStr *string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Season, &e.Week, &status, &e.StartedAt, &e.CompletedAt, &e.Rows, &errStr); err != nil {
			return nil, eris.Wrap(err, "refresh log: scan")
		}
		e.Status = model.UnitStatus(status)
		if errStr != nil {
			e.Error = *errStr
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "refresh log: iterate")
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
