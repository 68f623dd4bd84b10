// Package model defines the warehouse record types shared across the refresh
// pipeline and the query layer.
package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Position is an offensive skill-position code.
type Position string

// Skill positions retained by the warehouse.
const (
	PositionQB Position = "QB"
	PositionRB Position = "RB"
	PositionWR Position = "WR"
	PositionTE Position = "TE"
)

// SkillPositions lists every position the warehouse stores.
var SkillPositions = []Position{PositionQB, PositionRB, PositionWR, PositionTE}

// ParsePosition converts a raw position string to a skill Position.
// The second return is false for non-skill positions (K, DEF, OL, ...).
func ParsePosition(s string) (Position, bool) {
	p := Position(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PositionQB, PositionRB, PositionWR, PositionTE:
		return p, true
	case "HB", "FB":
		return PositionRB, true
	}
	return "", false
}

// StatLine holds the counting stats shared by weekly rows and season totals.
type StatLine struct {
	PassingYards   int `json:"passing_yards"`
	PassingTDs     int `json:"passing_tds"`
	Interceptions  int `json:"interceptions"`
	RushAttempts   int `json:"rush_attempts"`
	RushingYards   int `json:"rushing_yards"`
	RushingTDs     int `json:"rushing_tds"`
	Receptions     int `json:"receptions"`
	Targets        int `json:"targets"`
	ReceivingYards int `json:"receiving_yards"`
	ReceivingTDs   int `json:"receiving_tds"`
	FumblesLost    int `json:"fumbles_lost"`
}

// Add accumulates o into s.
func (s *StatLine) Add(o StatLine) {
	s.PassingYards += o.PassingYards
	s.PassingTDs += o.PassingTDs
	s.Interceptions += o.Interceptions
	s.RushAttempts += o.RushAttempts
	s.RushingYards += o.RushingYards
	s.RushingTDs += o.RushingTDs
	s.Receptions += o.Receptions
	s.Targets += o.Targets
	s.ReceivingYards += o.ReceivingYards
	s.ReceivingTDs += o.ReceivingTDs
	s.FumblesLost += o.FumblesLost
}

// Touches is rushing attempts plus receptions.
func (s StatLine) Touches() int {
	return s.RushAttempts + s.Receptions
}

// WeeklyRecord is one player's line for one (season, week).
type WeeklyRecord struct {
	PlayerID         string   `json:"player_id"`
	PlayerName       string   `json:"player_name"`
	Position         Position `json:"position"`
	Team             string   `json:"team"`
	Opponent         string   `json:"opponent,omitempty"`
	Season           int      `json:"season"`
	Week             int      `json:"week"`
	StatLine
	ParticipationPct *float64 `json:"participation_pct,omitempty"`
	FantasyPoints    float64  `json:"fantasy_points"`
}

// Key returns the unique (player_id, season, week) key.
func (r WeeklyRecord) Key() string {
	return fmt.Sprintf("%s/%d/%d", r.PlayerID, r.Season, r.Week)
}

// Row converts the record to the query-layer row shape.
func (r WeeklyRecord) Row() StatRow {
	return StatRow{
		PlayerID:         r.PlayerID,
		PlayerName:       r.PlayerName,
		Position:         r.Position,
		Team:             r.Team,
		Opponent:         r.Opponent,
		Season:           r.Season,
		Week:             r.Week,
		StatLine:         r.StatLine,
		GamesPlayed:      1,
		FantasyPoints:    r.FantasyPoints,
		AvgFantasyPoints: r.FantasyPoints,
		ParticipationPct: r.ParticipationPct,
	}
}

// SeasonTotal is one player's aggregated line for a season.
type SeasonTotal struct {
	PlayerID         string   `json:"player_id"`
	PlayerName       string   `json:"player_name"`
	Position         Position `json:"position"`
	Team             string   `json:"team"`
	Season           int      `json:"season"`
	StatLine
	GamesPlayed      int     `json:"games_played"`
	FantasyPoints    float64 `json:"fantasy_points"`
	AvgFantasyPoints float64 `json:"avg_fantasy_points"`
}

// SeasonKey returns the unique (player_id, season) key of a season total.
func SeasonKey(playerID string, season int) string {
	return fmt.Sprintf("%s/%d", playerID, season)
}

// Key returns the unique (player_id, season) key.
func (t SeasonTotal) Key() string {
	return SeasonKey(t.PlayerID, t.Season)
}

// Row converts the total to the query-layer row shape.
func (t SeasonTotal) Row() StatRow {
	return StatRow{
		PlayerID:         t.PlayerID,
		PlayerName:       t.PlayerName,
		Position:         t.Position,
		Team:             t.Team,
		Season:           t.Season,
		StatLine:         t.StatLine,
		GamesPlayed:      t.GamesPlayed,
		FantasyPoints:    t.FantasyPoints,
		AvgFantasyPoints: t.AvgFantasyPoints,
	}
}

// ParticipationRecord is a player's offensive snap share for one week.
type ParticipationRecord struct {
	PlayerID     string   `json:"player_id"`
	PlayerName   string   `json:"player_name"`
	Position     Position `json:"position"`
	Team         string   `json:"team"`
	Season       int      `json:"season"`
	Week         int      `json:"week"`
	OffenseSnaps int      `json:"offense_snaps"`
	OffensePct   float64  `json:"offense_pct"`
}

// SlateEntry is a priced contest entry for one player on one slate.
type SlateEntry struct {
	PlayerID        string          `json:"player_id"`
	PlayerName      string          `json:"player_name"`
	Position        Position        `json:"position"`
	Team            string          `json:"team"`
	Season          int             `json:"season"`
	Week            int             `json:"week"`
	SlateID         string          `json:"slate_id"`
	Price           decimal.Decimal `json:"price"`
	ProjectedPoints float64         `json:"projected_points"`
}

// PointsPerThousand returns projected points per 1000 of price, the usual
// value metric for salary-cap contests. Zero price yields zero.
func (e SlateEntry) PointsPerThousand() decimal.Decimal {
	if e.Price.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(e.ProjectedPoints).
		Mul(decimal.NewFromInt(1000)).
		Div(e.Price).
		Round(2)
}
