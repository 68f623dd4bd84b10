package warehouse

import (
	"strconv"
	"strings"

	"github.com/sells-group/statline/internal/model"
)

// statColumns are the counting-stat columns shared by weekly rows and
// season totals, in model.StatLine field order.
var statColumns = []string{
	"passing_yards", "passing_tds", "interceptions",
	"rush_attempts", "rushing_yards", "rushing_tds",
	"receptions", "targets", "receiving_yards", "receiving_tds",
	"fumbles_lost",
}

var weeklyColumns = concat(
	[]string{"player_id", "player_name", "position", "team", "opponent", "season", "week"},
	statColumns,
	[]string{"participation_pct", "fantasy_points"},
)

var seasonColumns = concat(
	[]string{"player_id", "player_name", "position", "team", "season"},
	statColumns,
	[]string{"games_played", "fantasy_points", "avg_fantasy_points"},
)

var participationColumns = []string{
	"player_id", "player_name", "position", "team", "season", "week", "offense_snaps", "offense_pct",
}

var slateColumns = []string{
	"player_id", "player_name", "position", "team", "season", "week", "slate_id", "price", "projected_points",
}

var injuryColumns = []string{
	"player_id", "player_name", "team", "position", "status", "injury", "practice_status", "fetched_at",
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func statValues(s model.StatLine) []any {
	return []any{
		s.PassingYards, s.PassingTDs, s.Interceptions,
		s.RushAttempts, s.RushingYards, s.RushingTDs,
		s.Receptions, s.Targets, s.ReceivingYards, s.ReceivingTDs,
		s.FumblesLost,
	}
}

func statDest(s *model.StatLine) []any {
	return []any{
		&s.PassingYards, &s.PassingTDs, &s.Interceptions,
		&s.RushAttempts, &s.RushingYards, &s.RushingTDs,
		&s.Receptions, &s.Targets, &s.ReceivingYards, &s.ReceivingTDs,
		&s.FumblesLost,
	}
}

func weeklyValues(r model.WeeklyRecord) []any {
	v := []any{r.PlayerID, r.PlayerName, string(r.Position), r.Team, r.Opponent, r.Season, r.Week}
	v = append(v, statValues(r.StatLine)...)
	return append(v, r.ParticipationPct, r.FantasyPoints)
}

func seasonValues(t model.SeasonTotal) []any {
	v := []any{t.PlayerID, t.PlayerName, string(t.Position), t.Team, t.Season}
	v = append(v, statValues(t.StatLine)...)
	return append(v, t.GamesPlayed, t.FantasyPoints, t.AvgFantasyPoints)
}

// dialect covers the SQL differences between the two backends.
type dialect struct {
	name  string
	bind  func(n int) string
	round func(expr string) string
}

var postgresDialect = dialect{
	name: "postgres",
	bind: func(n int) string { return "$" + strconv.Itoa(n) },
	round: func(expr string) string {
		return "CAST(ROUND(CAST(" + expr + " AS NUMERIC), 2) AS DOUBLE PRECISION)"
	},
}

var sqliteDialect = dialect{
	name:  "sqlite",
	bind:  func(int) string { return "?" },
	round: func(expr string) string { return "ROUND(" + expr + ", 2)" },
}

// args collects bind values and renders placeholders for a dialect.
type args struct {
	d    dialect
	vals []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return a.d.bind(len(a.vals))
}

// likePattern builds a case-folded substring pattern with LIKE
// metacharacters escaped.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(s))
	return "%" + s + "%"
}

// where renders the filters of a normalized query. Week bounds apply only
// to weekly reads.
func where(a *args, q model.QueryParams, weeks bool) string {
	conds := []string{"season = " + a.add(q.Season)}
	if weeks && q.HasWeekRange() {
		conds = append(conds, "week BETWEEN "+a.add(q.WeekStart)+" AND "+a.add(q.WeekEnd))
	}
	if q.Position != "" {
		conds = append(conds, "position = "+a.add(q.Position))
	}
	if q.Team != "" {
		conds = append(conds, "team = "+a.add(q.Team))
	}
	if q.Player != "" {
		conds = append(conds, "LOWER(player_name) LIKE "+a.add(likePattern(q.Player))+` ESCAPE '\'`)
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// sortColumn maps a whitelisted sort key to a column of the given layout.
// Weekly rows have no average, so it falls back to fantasy points.
func sortColumn(sort string, weekly bool) string {
	if !model.SortColumns[sort] {
		return "fantasy_points"
	}
	if weekly && sort == "avg_fantasy_points" {
		return "fantasy_points"
	}
	return sort
}

func page(a *args, q model.QueryParams) string {
	return " LIMIT " + a.add(q.PageSize) + " OFFSET " + a.add(q.Offset())
}

func selectList(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

// aggregateSQL sums weekly rows per (player, season) and takes identity
// from each player's latest week in the filtered range. Output columns are
// in seasonColumns order.
func aggregateSQL(d dialect, filter string) string {
	sums := make([]string, len(statColumns))
	for i, c := range statColumns {
		sums[i] = "SUM(" + c + ") AS " + c
	}
	inner := "SELECT player_id, season, " + strings.Join(sums, ", ") +
		", COUNT(*) AS games_played, SUM(fantasy_points) AS fantasy_points, MAX(week) AS last_week" +
		" FROM " + TableWeekly + filter + " GROUP BY player_id, season"

	return "SELECT a.player_id, w.player_name, w.position, w.team, a.season, " +
		selectList("a.", statColumns) + ", a.games_played, " +
		d.round("a.fantasy_points") + ", " +
		d.round("a.fantasy_points / a.games_played") +
		" FROM (" + inner + ") a JOIN " + TableWeekly + " w" +
		" ON w.player_id = a.player_id AND w.season = a.season AND w.week = a.last_week"
}

// aggregateSort orders aggregateSQL output without clashing with the
// joined weekly columns.
func aggregateSort(sort string) string {
	switch sortColumn(sort, false) {
	case "fantasy_points":
		return "a.fantasy_points"
	case "avg_fantasy_points":
		return "a.fantasy_points / a.games_played"
	default:
		return "a." + sortColumn(sort, false)
	}
}

// recomputeSQL rebuilds one season's totals from its weekly rows.
func recomputeSQL(d dialect) string {
	a := &args{d: d}
	filter := " WHERE season = " + a.add(0)
	return "INSERT INTO " + TableSeasonTotals + " (" + strings.Join(seasonColumns, ", ") + ") " +
		aggregateSQL(d, filter)
}

func insertSQL(d dialect, table string, cols []string) string {
	a := &args{d: d}
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = a.add(nil)
	}
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

// inList renders "col IN (...)" for a non-empty value list.
func inList[T any](a *args, col string, vals []T) string {
	marks := make([]string, len(vals))
	for i, v := range vals {
		marks[i] = a.add(v)
	}
	return col + " IN (" + strings.Join(marks, ", ") + ")"
}
