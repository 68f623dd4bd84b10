package warehouse

import (
	"fmt"
	"strings"

	"github.com/sells-group/statline/internal/model"
)

// participationRows dedupes by (player, season, week), last row winning,
// and renders rows in participationColumns order.
func participationRows(parts []model.ParticipationRecord) [][]any {
	idx := make(map[string]int, len(parts))
	var rows [][]any
	for _, p := range parts {
		row := []any{p.PlayerID, p.PlayerName, string(p.Position), p.Team, p.Season, p.Week, p.OffenseSnaps, p.OffensePct}
		key := fmt.Sprintf("%s/%d/%d", p.PlayerID, p.Season, p.Week)
		if i, ok := idx[key]; ok {
			rows[i] = row
			continue
		}
		idx[key] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// injuryRows dedupes by player, last row winning, and renders rows in
// injuryColumns order.
func injuryRows(report []model.InjuryRecord) [][]any {
	idx := make(map[string]int, len(report))
	var rows [][]any
	for _, r := range report {
		row := []any{r.PlayerID, r.PlayerName, r.Team, r.Position, r.Status, r.Injury, r.PracticeStatus, r.FetchedAt.UTC()}
		if i, ok := idx[r.PlayerID]; ok {
			rows[i] = row
			continue
		}
		idx[r.PlayerID] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// dedupeSlate keeps the last entry per player.
func dedupeSlate(entries []model.SlateEntry) []model.SlateEntry {
	idx := make(map[string]int, len(entries))
	var out []model.SlateEntry
	for _, e := range entries {
		if i, ok := idx[e.PlayerID]; ok {
			out[i] = e
			continue
		}
		idx[e.PlayerID] = len(out)
		out = append(out, e)
	}
	return out
}

func slateSelect(a *args, f model.SlateFilter) string {
	sql := "SELECT " + strings.Join(slateColumns, ", ") + " FROM " + TableSlates +
		" WHERE season = " + a.add(f.Season) + " AND week = " + a.add(f.Week)
	if f.SlateID != "" {
		sql += " AND slate_id = " + a.add(f.SlateID)
	}
	if f.Position != "" && !strings.EqualFold(f.Position, "all") {
		sql += " AND position = " + a.add(strings.ToUpper(f.Position))
	}
	return sql + " ORDER BY price DESC, player_id"
}
