package model

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Comparison size limits.
const (
	MinCompareNames = 2
	MaxCompareNames = 10
)

// SummaryPositions are the positions a season summary breaks down.
var SummaryPositions = []Position{PositionQB, PositionRB, PositionWR, PositionTE}

// CompareFilter selects the players and stat columns of a side-by-side
// comparison. Empty Stats means every column.
type CompareFilter struct {
	Names  []string `json:"names"`
	Season int      `json:"season"`
	Stats  []string `json:"stats,omitempty"`
}

// Normalize trims names and stats, drops blanks and checks the name count
// and stat names.
func (f CompareFilter) Normalize() (CompareFilter, error) {
	names := make([]string, 0, len(f.Names))
	for _, n := range f.Names {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) < MinCompareNames || len(names) > MaxCompareNames {
		return f, eris.Wrapf(ErrInvalidQuery, "compare needs %d to %d players, got %d",
			MinCompareNames, MaxCompareNames, len(names))
	}
	f.Names = names

	stats := make([]string, 0, len(f.Stats))
	for _, s := range f.Stats {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if !StatFields[s] {
			return f, eris.Wrapf(ErrInvalidQuery, "unknown stat %q", s)
		}
		stats = append(stats, s)
	}
	f.Stats = stats
	return f, nil
}

// StatFields lists the numeric columns a comparison may select.
var StatFields = map[string]bool{
	"passing_yards":      true,
	"passing_tds":        true,
	"interceptions":      true,
	"rush_attempts":      true,
	"rushing_yards":      true,
	"rushing_tds":        true,
	"receptions":         true,
	"targets":            true,
	"receiving_yards":    true,
	"receiving_tds":      true,
	"fumbles_lost":       true,
	"games_played":       true,
	"fantasy_points":     true,
	"avg_fantasy_points": true,
}

// Values returns the row's numeric columns keyed by JSON name.
func (r StatRow) Values() map[string]float64 {
	return map[string]float64{
		"passing_yards":      float64(r.PassingYards),
		"passing_tds":        float64(r.PassingTDs),
		"interceptions":      float64(r.Interceptions),
		"rush_attempts":      float64(r.RushAttempts),
		"rushing_yards":      float64(r.RushingYards),
		"rushing_tds":        float64(r.RushingTDs),
		"receptions":         float64(r.Receptions),
		"targets":            float64(r.Targets),
		"receiving_yards":    float64(r.ReceivingYards),
		"receiving_tds":      float64(r.ReceivingTDs),
		"fumbles_lost":       float64(r.FumblesLost),
		"games_played":       float64(r.GamesPlayed),
		"fantasy_points":     r.FantasyPoints,
		"avg_fantasy_points": r.AvgFantasyPoints,
	}
}

// ComparedPlayer is one player's season line in a comparison.
type ComparedPlayer struct {
	PlayerID   string             `json:"player_id"`
	PlayerName string             `json:"player_name"`
	Position   Position           `json:"position"`
	Team       string             `json:"team"`
	Stats      map[string]float64 `json:"stats"`
}

// NewComparedPlayer projects row onto the requested stats.
func NewComparedPlayer(row StatRow, stats []string) ComparedPlayer {
	all := row.Values()
	p := ComparedPlayer{
		PlayerID:   row.PlayerID,
		PlayerName: row.PlayerName,
		Position:   row.Position,
		Team:       row.Team,
		Stats:      all,
	}
	if len(stats) > 0 {
		p.Stats = make(map[string]float64, len(stats))
		for _, s := range stats {
			p.Stats[s] = all[s]
		}
	}
	return p
}

// Comparison is the result of a compare request. Players unknown for the
// season are left out, so Found may be lower than Requested.
type Comparison struct {
	Season    int              `json:"season"`
	Players   []ComparedPlayer `json:"players"`
	Requested int              `json:"players_requested"`
	Found     int              `json:"players_found"`
}

// TopPerformer names the highest-scoring player of a group.
type TopPerformer struct {
	PlayerName    string  `json:"player_name"`
	Team          string  `json:"team"`
	FantasyPoints float64 `json:"fantasy_points"`
}

// PositionSummary aggregates one position's season totals.
type PositionSummary struct {
	Position           Position      `json:"position"`
	TotalPlayers       int           `json:"total_players"`
	TotalFantasyPoints float64       `json:"total_fantasy_points"`
	AvgFantasyPoints   float64       `json:"avg_fantasy_points"`
	Top                *TopPerformer `json:"top_performer,omitempty"`
}

// SeasonSummary is the per-position overview of one season.
type SeasonSummary struct {
	Season       int               `json:"season"`
	TotalPlayers int               `json:"total_players"`
	Positions    []PositionSummary `json:"positions"`
}

// SummarizePosition folds season-total rows of one position.
func SummarizePosition(pos Position, rows []StatRow) PositionSummary {
	s := PositionSummary{Position: pos, TotalPlayers: len(rows)}
	for _, r := range rows {
		s.TotalFantasyPoints += r.FantasyPoints
		if s.Top == nil || r.FantasyPoints > s.Top.FantasyPoints {
			s.Top = &TopPerformer{PlayerName: r.PlayerName, Team: r.Team, FantasyPoints: r.FantasyPoints}
		}
	}
	if len(rows) > 0 {
		s.AvgFantasyPoints = round1(s.TotalFantasyPoints / float64(len(rows)))
	}
	s.TotalFantasyPoints = round1(s.TotalFantasyPoints)
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
