package warehouse

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/statline/internal/model"
)

// Limits for the leaderboard style reads.
const (
	defaultTopLimit    = 10
	maxTopLimit        = 100
	defaultSearchLimit = 20
)

// rowIter is what both pgx.Rows and *sql.Rows provide.
type rowIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// querier runs a read query. The returned func releases the rows.
type querier interface {
	query(ctx context.Context, sql string, args ...any) (rowIter, func(), error)
}

// reader implements the read side of Store once for both backends.
type reader struct {
	q querier
	d dialect
}

func (r reader) count(ctx context.Context, sql string, args []any) (int, error) {
	rows, done, err := r.q.query(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	defer done()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func scanWeekly(rows rowIter) (model.WeeklyRecord, error) {
	var w model.WeeklyRecord
	var pos string
	dest := []any{&w.PlayerID, &w.PlayerName, &pos, &w.Team, &w.Opponent, &w.Season, &w.Week}
	dest = append(dest, statDest(&w.StatLine)...)
	dest = append(dest, &w.ParticipationPct, &w.FantasyPoints)
	if err := rows.Scan(dest...); err != nil {
		return w, err
	}
	w.Position = model.Position(pos)
	return w, nil
}

func scanSeason(rows rowIter) (model.SeasonTotal, error) {
	var t model.SeasonTotal
	var pos string
	dest := []any{&t.PlayerID, &t.PlayerName, &pos, &t.Team, &t.Season}
	dest = append(dest, statDest(&t.StatLine)...)
	dest = append(dest, &t.GamesPlayed, &t.FantasyPoints, &t.AvgFantasyPoints)
	if err := rows.Scan(dest...); err != nil {
		return t, err
	}
	t.Position = model.Position(pos)
	return t, nil
}

func (r reader) weeklyRows(ctx context.Context, sql string, args []any) ([]model.StatRow, error) {
	rows, done, err := r.q.query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []model.StatRow
	for rows.Next() {
		w, err := scanWeekly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w.Row())
	}
	return out, rows.Err()
}

func (r reader) seasonRows(ctx context.Context, sql string, args []any) ([]model.StatRow, error) {
	rows, done, err := r.q.query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []model.StatRow
	for rows.Next() {
		t, err := scanSeason(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t.Row())
	}
	return out, rows.Err()
}

// ReadWeekly returns one page of weekly rows and the total match count.
func (r reader) ReadWeekly(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error) {
	a := &args{d: r.d}
	filter := where(a, q, true)
	total, err := r.count(ctx, "SELECT COUNT(*) FROM "+TableWeekly+filter, a.vals)
	if err != nil {
		return nil, 0, &StoreError{Op: "read weekly", Err: err}
	}
	sql := "SELECT " + strings.Join(weeklyColumns, ", ") + " FROM " + TableWeekly + filter +
		" ORDER BY " + sortColumn(q.Sort, true) + " DESC, player_id, week" + page(a, q)
	rows, err := r.weeklyRows(ctx, sql, a.vals)
	if err != nil {
		return nil, 0, &StoreError{Op: "read weekly", Err: err}
	}
	return rows, total, nil
}

// ReadSeasonTotals returns one page of season totals.
func (r reader) ReadSeasonTotals(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error) {
	a := &args{d: r.d}
	filter := where(a, q, false)
	total, err := r.count(ctx, "SELECT COUNT(*) FROM "+TableSeasonTotals+filter, a.vals)
	if err != nil {
		return nil, 0, &StoreError{Op: "read season totals", Err: err}
	}
	sql := "SELECT " + strings.Join(seasonColumns, ", ") + " FROM " + TableSeasonTotals + filter +
		" ORDER BY " + sortColumn(q.Sort, false) + " DESC, player_id" + page(a, q)
	rows, err := r.seasonRows(ctx, sql, a.vals)
	if err != nil {
		return nil, 0, &StoreError{Op: "read season totals", Err: err}
	}
	return rows, total, nil
}

// SumWeekly returns per-player sums of weekly rows over the query's week
// range.
func (r reader) SumWeekly(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error) {
	a := &args{d: r.d}
	agg := aggregateSQL(r.d, where(a, q, true))
	total, err := r.count(ctx, "SELECT COUNT(*) FROM ("+agg+") s", a.vals)
	if err != nil {
		return nil, 0, &StoreError{Op: "sum weekly", Err: err}
	}
	sql := agg + " ORDER BY " + aggregateSort(q.Sort) + " DESC, a.player_id" + page(a, q)
	rows, err := r.seasonRows(ctx, sql, a.vals)
	if err != nil {
		return nil, 0, &StoreError{Op: "sum weekly", Err: err}
	}
	return rows, total, nil
}

// TopPerformers returns the season leaders of one stat.
func (r reader) TopPerformers(ctx context.Context, f model.TopFilter) ([]model.StatRow, error) {
	if f.Stat == "" {
		f.Stat = "fantasy_points"
	}
	if !model.SortColumns[f.Stat] {
		return nil, eris.Wrapf(model.ErrInvalidQuery, "unsupported stat %q", f.Stat)
	}
	if f.Limit <= 0 {
		f.Limit = defaultTopLimit
	}
	if f.Limit > maxTopLimit {
		f.Limit = maxTopLimit
	}

	a := &args{d: r.d}
	sql := "SELECT " + strings.Join(seasonColumns, ", ") + " FROM " + TableSeasonTotals +
		" WHERE season = " + a.add(f.Season)
	if f.Position != "" && !strings.EqualFold(f.Position, "all") {
		sql += " AND position = " + a.add(strings.ToUpper(f.Position))
	}
	sql += " ORDER BY " + f.Stat + " DESC, player_id LIMIT " + a.add(f.Limit)

	rows, err := r.seasonRows(ctx, sql, a.vals)
	if err != nil {
		return nil, &StoreError{Op: "top performers", Err: err}
	}
	return rows, nil
}

// SearchPlayers matches player names case-insensitively by substring.
// season 0 searches every season.
func (r reader) SearchPlayers(ctx context.Context, name string, season, limit int) ([]model.PlayerMatch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.Wrap(model.ErrInvalidQuery, "player name is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	a := &args{d: r.d}
	sql := "SELECT player_id, player_name, position, team, season, fantasy_points FROM " + TableSeasonTotals +
		" WHERE LOWER(player_name) LIKE " + a.add(likePattern(name)) + ` ESCAPE '\'`
	if season > 0 {
		sql += " AND season = " + a.add(season)
	}
	sql += " ORDER BY fantasy_points DESC, player_id, season LIMIT " + a.add(limit)

	rows, done, err := r.q.query(ctx, sql, a.vals...)
	if err != nil {
		return nil, &StoreError{Op: "search players", Err: err}
	}
	defer done()

	var out []model.PlayerMatch
	for rows.Next() {
		var m model.PlayerMatch
		var pos string
		if err := rows.Scan(&m.PlayerID, &m.PlayerName, &pos, &m.Team, &m.Season, &m.FantasyPoints); err != nil {
			return nil, &StoreError{Op: "search players", Err: err}
		}
		m.Position = model.Position(pos)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "search players", Err: err}
	}
	return out, nil
}

// PlayerTrend returns the weekly lines of the named players, ordered by
// name then week.
func (r reader) PlayerTrend(ctx context.Context, f model.TrendFilter) ([]model.StatRow, error) {
	var names []string
	for _, n := range f.Names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, eris.Wrap(model.ErrInvalidQuery, "at least one player name is required")
	}

	a := &args{d: r.d}
	sql := "SELECT " + strings.Join(weeklyColumns, ", ") + " FROM " + TableWeekly +
		" WHERE season = " + a.add(f.Season) + " AND " + inList(a, "LOWER(player_name)", names)
	if f.WeekStart > 0 {
		sql += " AND week >= " + a.add(f.WeekStart)
	}
	if f.WeekEnd > 0 {
		sql += " AND week <= " + a.add(f.WeekEnd)
	}
	sql += " ORDER BY player_name, week"

	rows, err := r.weeklyRows(ctx, sql, a.vals)
	if err != nil {
		return nil, &StoreError{Op: "player trend", Err: err}
	}
	return rows, nil
}

// PresentUnits reports which refresh units already have rows. Weekly rows
// mark (season, week) units; season totals of a season mark its
// whole-season unit.
func (r reader) PresentUnits(ctx context.Context, seasons []int) (map[string]bool, error) {
	present := make(map[string]bool)
	if len(seasons) == 0 {
		return present, nil
	}
	a := &args{d: r.d}
	in := inList(a, "season", seasons)
	sql := "SELECT DISTINCT season, week FROM " + TableWeekly + " WHERE " + in

	b := &args{d: r.d}
	sqlTotals := "SELECT DISTINCT season, 0 FROM " + TableSeasonTotals + " WHERE " + inList(b, "season", seasons)

	for _, q := range []struct {
		sql  string
		args []any
	}{{sql, a.vals}, {sqlTotals, b.vals}} {
		rows, done, err := r.q.query(ctx, q.sql, q.args...)
		if err != nil {
			return nil, &StoreError{Op: "present units", Err: err}
		}
		for rows.Next() {
			var season, week int
			if err := rows.Scan(&season, &week); err != nil {
				done()
				return nil, &StoreError{Op: "present units", Err: err}
			}
			present[model.NewUnit(season, week).Key()] = true
		}
		err = rows.Err()
		done()
		if err != nil {
			return nil, &StoreError{Op: "present units", Err: err}
		}
	}
	return present, nil
}

// ReadInjuries returns the stored injury report ordered by team then
// player. Unless f.All is set only fantasy-relevant positions are kept.
func (r reader) ReadInjuries(ctx context.Context, f model.InjuryFilter) ([]model.InjuryRecord, error) {
	f = f.Normalize()
	a := &args{d: r.d}
	sql := "SELECT " + strings.Join(injuryColumns, ", ") + " FROM " + TableInjuries + " WHERE 1 = 1"
	if f.Team != "" {
		sql += " AND team = " + a.add(f.Team)
	}
	if f.Position != "" {
		sql += " AND position = " + a.add(f.Position)
	} else if !f.All {
		sql += " AND " + inList(a, "position", model.InjuryPositions)
	}
	sql += " ORDER BY team, player_name"

	rows, done, err := r.q.query(ctx, sql, a.vals...)
	if err != nil {
		return nil, &StoreError{Op: "read injuries", Err: err}
	}
	defer done()

	var out []model.InjuryRecord
	for rows.Next() {
		var rec model.InjuryRecord
		if err := rows.Scan(&rec.PlayerID, &rec.PlayerName, &rec.Team, &rec.Position, &rec.Status,
			&rec.Injury, &rec.PracticeStatus, &rec.FetchedAt); err != nil {
			return nil, &StoreError{Op: "read injuries", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "read injuries", Err: err}
	}
	return out, nil
}

// Stats counts rows per table and season.
func (r reader) Stats(ctx context.Context) (*model.WarehouseStats, error) {
	tables := []string{TableWeekly, TableSeasonTotals, TableParticipation, TableSlates}
	parts := make([]string, len(tables))
	for i, t := range tables {
		parts[i] = "SELECT '" + t + "' AS tbl, season, COUNT(*) AS n FROM " + t + " GROUP BY season"
	}
	sql := strings.Join(parts, " UNION ALL ") + " ORDER BY tbl, season"

	rows, done, err := r.q.query(ctx, sql)
	if err != nil {
		return nil, &StoreError{Op: "stats", Err: err}
	}
	defer done()

	st := &model.WarehouseStats{}
	seen := make(map[int]bool)
	for rows.Next() {
		var c model.TableCount
		if err := rows.Scan(&c.Table, &c.Season, &c.Rows); err != nil {
			return nil, &StoreError{Op: "stats", Err: err}
		}
		st.Counts = append(st.Counts, c)
		if !seen[c.Season] {
			seen[c.Season] = true
			st.Seasons = append(st.Seasons, c.Season)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "stats", Err: err}
	}
	sort.Ints(st.Seasons)
	return st, nil
}
