package transform

import (
	"sort"

	"github.com/sells-group/statline/internal/model"
)

// Aggregate folds weekly records into one total per (player, season).
// Fantasy points are the sum of the weekly points, so the season total of
// a closed season always equals the sum of its weeks. Name, position and
// team come from the player's latest week. Output is ordered by fantasy
// points, highest first.
func Aggregate(records []model.WeeklyRecord) []model.SeasonTotal {
	type acc struct {
		total    model.SeasonTotal
		lastWeek int
		points   float64
	}
	byKey := make(map[string]*acc)
	var order []string

	for _, r := range records {
		key := model.SeasonKey(r.PlayerID, r.Season)
		a, ok := byKey[key]
		if !ok {
			a = &acc{total: model.SeasonTotal{PlayerID: r.PlayerID, Season: r.Season}, lastWeek: -1}
			byKey[key] = a
			order = append(order, key)
		}
		if r.Week >= a.lastWeek {
			a.lastWeek = r.Week
			a.total.PlayerName = r.PlayerName
			a.total.Position = r.Position
			a.total.Team = r.Team
		}
		a.total.StatLine.Add(r.StatLine)
		a.total.GamesPlayed++
		a.points += r.FantasyPoints
	}

	out := make([]model.SeasonTotal, 0, len(order))
	for _, key := range order {
		a := byKey[key]
		t := a.total
		t.FantasyPoints = Round2(a.points)
		if t.GamesPlayed > 0 {
			t.AvgFantasyPoints = Round2(a.points / float64(t.GamesPlayed))
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FantasyPoints != out[j].FantasyPoints {
			return out[i].FantasyPoints > out[j].FantasyPoints
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}
