package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/statline/internal/model"
)

// Snap-count columns.
var (
	snapPlayer   = []string{"player", "player_name"}
	snapPlayerID = []string{"pfr_player_id", "player_id"}
	snapPosition = []string{"position"}
	snapTeam     = []string{"team"}
	snapSeason   = []string{"season"}
	snapWeek     = []string{"week"}
	snapType     = []string{"game_type", "season_type"}
	snapCount    = []string{"offense_snaps"}
	snapPct      = []string{"offense_pct"}
)

// TransformParticipation normalizes a snap-count batch. Only regular-season
// skill-position rows with at least one offensive snap are kept. The share
// is stored as a percentage with one decimal.
func TransformParticipation(batch *model.RawBatch) ([]model.ParticipationRecord, error) {
	if batch == nil || len(batch.Rows) == 0 {
		return nil, nil
	}
	t := newTable(batch)

	names, err := t.required(snapPlayer...)
	if err != nil {
		return nil, err
	}
	if _, _, ok := t.find(snapCount...); !ok {
		return nil, &TransformError{Season: batch.Season, Week: batch.Week, Column: snapCount[0], Err: ErrMissingColumn}
	}

	ids := t.strings(t.col(snapPlayerID...))
	positions := t.strings(t.col(snapPosition...))
	teams := t.strings(t.col(snapTeam...))
	seasons, err := t.numbers(snapSeason...)
	if err != nil {
		return nil, err
	}
	weeks, err := t.numbers(snapWeek...)
	if err != nil {
		return nil, err
	}
	types := t.strings(t.col(snapType...))
	snaps, err := t.numbers(snapCount...)
	if err != nil {
		return nil, err
	}
	pcts, err := t.numbers(snapPct...)
	if err != nil {
		return nil, err
	}

	var out []model.ParticipationRecord
	for i := range batch.Rows {
		pos, ok := model.ParsePosition(positions[i])
		if !ok || names[i] == "" || snaps[i] <= 0 {
			continue
		}
		if ty := strings.ToUpper(types[i]); ty != "" && ty != "REG" {
			continue
		}
		week := int(weeks[i])
		if week == 0 {
			week = batch.Week
		}
		if batch.Week > 0 && week != batch.Week {
			continue
		}
		if s := int(seasons[i]); s != 0 && s != batch.Season {
			continue
		}

		team := NormalizeTeam(teams[i])
		id := ids[i]
		if id == "" {
			id = fmt.Sprintf("%s|%s", NormalizeName(names[i]), team)
		}
		out = append(out, model.ParticipationRecord{
			PlayerID:     id,
			PlayerName:   names[i],
			Position:     pos,
			Team:         team,
			Season:       batch.Season,
			Week:         week,
			OffenseSnaps: int(math.Round(snaps[i])),
			OffensePct:   sharePercent(pcts[i]),
		})
	}
	return out, nil
}

// sharePercent converts a 0..1 fraction to a percentage. Values already
// above 1 are taken as percentages.
func sharePercent(v float64) float64 {
	if v <= 1 {
		v *= 100
	}
	return math.Round(v*10) / 10
}

// MergeParticipation copies snap shares onto weekly records. Sources use
// different player ids, so rows are matched on normalized name, team,
// season and week. It returns how many records were matched.
func MergeParticipation(records []model.WeeklyRecord, parts []model.ParticipationRecord) int {
	if len(records) == 0 || len(parts) == 0 {
		return 0
	}
	byKey := make(map[string]float64, len(parts))
	for _, p := range parts {
		byKey[participationKey(p.PlayerName, p.Team, p.Season, p.Week)] = p.OffensePct
	}

	matched := 0
	for i := range records {
		r := &records[i]
		pct, ok := byKey[participationKey(r.PlayerName, r.Team, r.Season, r.Week)]
		if !ok {
			continue
		}
		v := pct
		r.ParticipationPct = &v
		matched++
	}
	return matched
}

func participationKey(name, team string, season, week int) string {
	return fmt.Sprintf("%s|%s|%d|%d", NormalizeName(name), NormalizeTeam(team), season, week)
}
