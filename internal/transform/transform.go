// Package transform converts raw upstream batches into warehouse records.
// Everything here is pure: no I/O, no clocks, no globals besides the name
// memo table. Batches are processed column by column.
package transform

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/statline/internal/model"
)

// Scoring holds the league scoring settings. PPR is the points per
// reception: 0, 0.5 or 1.
type Scoring struct {
	PPR float64
}

// Points scores a single stat line.
func (s Scoring) Points(l model.StatLine) float64 {
	pts := 0.04*float64(l.PassingYards) +
		4*float64(l.PassingTDs) -
		float64(l.Interceptions) +
		0.1*float64(l.RushingYards) +
		6*float64(l.RushingTDs) +
		0.1*float64(l.ReceivingYards) +
		6*float64(l.ReceivingTDs) +
		s.PPR*float64(l.Receptions) -
		float64(l.FumblesLost)
	return Round2(pts)
}

// Transform normalizes a raw batch into weekly records. Rows outside the
// batch's season or week, non-skill positions and postseason games are
// dropped. When a player appears twice in one week the later row wins.
func Transform(batch *model.RawBatch, scoring Scoring) ([]model.WeeklyRecord, error) {
	if batch == nil || len(batch.Rows) == 0 {
		return nil, nil
	}
	m, ok := mappingFor(batch.Format)
	if !ok {
		return nil, &TransformError{Season: batch.Season, Week: batch.Week, Err: ErrUnknownFormat}
	}
	t := newTable(batch)

	ids, err := t.required(m.playerID...)
	if err != nil {
		return nil, err
	}
	names, err := t.names(m)
	if err != nil {
		return nil, err
	}

	n := len(batch.Rows)
	positions := t.strings(t.col(m.position...))
	teams := t.strings(t.col(m.team...))
	opponents := t.opponents(m, teams)

	weekCol := t.col(m.week...)
	weeks := make([]int, n)
	if weekCol < 0 {
		for i := range weeks {
			weeks[i] = batch.Week
		}
	} else {
		raw := t.strings(weekCol)
		for i, s := range raw {
			w, err := parseInt(s)
			if err != nil {
				return nil, &TransformError{Season: batch.Season, Week: batch.Week, Column: m.week[0], Row: i + 1, Err: err}
			}
			if w == 0 {
				w = batch.Week
			}
			weeks[i] = w
		}
	}

	keep := t.filter(m, weeks, positions)

	// Parse every stat as a column and accumulate points column-wise.
	line := make([]model.StatLine, n)
	points := make([]float64, n)
	for _, f := range m.stats {
		col, err := t.stat(f)
		if err != nil {
			return nil, err
		}
		w := f.weight(scoring)
		for i, v := range col {
			c := int(math.Round(v))
			f.set(&line[i], c)
			points[i] += w * float64(c)
		}
	}

	out := make([]model.WeeklyRecord, 0, n)
	seen := make(map[string]int, n)
	for i := 0; i < n; i++ {
		if !keep[i] {
			continue
		}
		if ids[i] == "" || names[i] == "" {
			return nil, &TransformError{Season: batch.Season, Week: batch.Week, Column: "player_id/player_name", Row: i + 1, Err: ErrMissingColumn}
		}
		pos, _ := model.ParsePosition(positions[i])
		rec := model.WeeklyRecord{
			PlayerID:      ids[i],
			PlayerName:    names[i],
			Position:      pos,
			Team:          NormalizeTeam(teams[i]),
			Opponent:      NormalizeTeam(opponents[i]),
			Season:        batch.Season,
			Week:          weeks[i],
			StatLine:      line[i],
			FantasyPoints: Round2(points[i]),
		}
		if j, dup := seen[rec.Key()]; dup {
			out[j] = rec
			continue
		}
		seen[rec.Key()] = len(out)
		out = append(out, rec)
	}
	return out, nil
}

func (t table) col(aliases ...string) int {
	i, _, _ := t.find(aliases...)
	return i
}

// required returns a string column that must exist. Blank values are
// checked only for rows that survive filtering.
func (t table) required(aliases ...string) ([]string, error) {
	col, _, ok := t.find(aliases...)
	if !ok {
		return nil, &TransformError{Season: t.batch.Season, Week: t.batch.Week, Column: aliases[0], Err: ErrMissingColumn}
	}
	return t.strings(col), nil
}

// names resolves the display name, composing first and last name when the
// layout has no full-name column.
func (t table) names(m columnMap) ([]string, error) {
	if _, _, ok := t.find(m.name...); ok {
		return t.required(m.name...)
	}
	first, _, okFirst := t.find(m.firstName)
	last, _, okLast := t.find(m.lastName)
	if !okFirst && !okLast {
		return nil, &TransformError{Season: t.batch.Season, Week: t.batch.Week, Column: "player_name", Err: ErrMissingColumn}
	}
	firsts, lasts := t.strings(first), t.strings(last)
	out := make([]string, len(firsts))
	for i := range out {
		out[i] = strings.TrimSpace(firsts[i] + " " + lasts[i])
	}
	return out, nil
}

// opponents reads the opponent column, or derives it from the home and
// away teams of the game.
func (t table) opponents(m columnMap, teams []string) []string {
	if col := t.col(m.opponent...); col >= 0 {
		return t.strings(col)
	}
	home := t.strings(t.col(m.homeTeam))
	away := t.strings(t.col(m.awayTeam))
	out := make([]string, len(teams))
	for i, team := range teams {
		switch {
		case team == "":
		case strings.EqualFold(team, home[i]):
			out[i] = away[i]
		case strings.EqualFold(team, away[i]):
			out[i] = home[i]
		}
	}
	return out
}

// filter marks the rows that belong in the warehouse.
func (t table) filter(m columnMap, weeks []int, positions []string) []bool {
	b := t.batch
	keep := make([]bool, len(b.Rows))

	seasons := t.strings(t.col(m.season...))
	types := t.strings(t.col(m.seasonType...))
	post := t.strings(t.col(m.postseason))

	for i := range keep {
		if _, ok := model.ParsePosition(positions[i]); !ok {
			continue
		}
		if b.Week > 0 && weeks[i] != b.Week {
			continue
		}
		if s := seasons[i]; s != "" {
			if v, err := strconv.Atoi(s); err == nil && v != b.Season {
				continue
			}
		}
		if ty := strings.ToUpper(types[i]); ty != "" && ty != "REG" {
			continue
		}
		if strings.EqualFold(post[i], "true") {
			continue
		}
		keep[i] = true
	}
	return keep
}
