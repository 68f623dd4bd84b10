package model

import (
	"github.com/rotisserie/eris"
)

// SeasonPolicy decides how a season is stored and which weeks are valid.
// It is the single place the historical cutoff is consulted.
type SeasonPolicy struct {
	HistoricalCutoff int // seasons <= cutoff are historical
	MinSeason        int
	MaxSeason        int // 0 = no upper bound
	MaxWeek          int
}

// Historical reports whether season is closed and kept as totals only.
func (p SeasonPolicy) Historical(season int) bool {
	return season <= p.HistoricalCutoff
}

// ValidSeason checks season against the supported range.
func (p SeasonPolicy) ValidSeason(season int) error {
	if season < p.MinSeason {
		return eris.Errorf("season %d before minimum %d", season, p.MinSeason)
	}
	if p.MaxSeason > 0 && season > p.MaxSeason {
		return eris.Errorf("season %d after maximum %d", season, p.MaxSeason)
	}
	return nil
}

// ValidUnit checks a (season, week) pair. Week 0 is only valid for
// historical seasons.
func (p SeasonPolicy) ValidUnit(season, week int) error {
	if err := p.ValidSeason(season); err != nil {
		return err
	}
	if week < 0 || week > p.MaxWeek {
		return eris.Errorf("week %d outside 0..%d", week, p.MaxWeek)
	}
	if week == 0 && !p.Historical(season) {
		return eris.Errorf("whole-season unit requested for current season %d", season)
	}
	return nil
}

// RequiredUnits expands seasons into refresh units. Historical seasons yield
// a single whole-season unit. Current seasons yield one unit per week in
// weeks, or 1..MaxWeek when weeks is empty.
func (p SeasonPolicy) RequiredUnits(seasons, weeks []int) ([]RefreshUnit, error) {
	var units []RefreshUnit
	seen := make(map[string]bool)
	for _, season := range seasons {
		if err := p.ValidSeason(season); err != nil {
			return nil, err
		}
		if p.Historical(season) {
			u := NewUnit(season, 0)
			if !seen[u.Key()] {
				seen[u.Key()] = true
				units = append(units, u)
			}
			continue
		}
		ws := weeks
		if len(ws) == 0 {
			ws = make([]int, p.MaxWeek)
			for i := range ws {
				ws[i] = i + 1
			}
		}
		for _, w := range ws {
			if w < 1 || w > p.MaxWeek {
				return nil, eris.Errorf("week %d outside 1..%d", w, p.MaxWeek)
			}
			u := NewUnit(season, w)
			if seen[u.Key()] {
				continue
			}
			seen[u.Key()] = true
			units = append(units, u)
		}
	}
	return units, nil
}
