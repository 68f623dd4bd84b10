package model

import (
	"strings"
	"time"
)

// InjuryPositions are the positions an injury view keeps by default.
// Kickers are listed though the warehouse stores no kicking stats.
var InjuryPositions = []string{"QB", "RB", "WR", "TE", "K"}

// InjuryRecord is one player on the current league injury report. Status
// and Injury are kept as published ("Questionable", "Hamstring").
type InjuryRecord struct {
	PlayerID       string    `json:"player_id"`
	PlayerName     string    `json:"player_name"`
	Team           string    `json:"team"`
	Position       string    `json:"position"`
	Status         string    `json:"status"`
	Injury         string    `json:"injury"`
	PracticeStatus string    `json:"practice_status,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// FantasyRelevant reports whether the player plays an injury-view position.
func (r InjuryRecord) FantasyRelevant() bool {
	for _, p := range InjuryPositions {
		if r.Position == p {
			return true
		}
	}
	return false
}

// InjuryFilter selects injury report rows. All includes non-skill positions.
type InjuryFilter struct {
	Team     string `json:"team,omitempty"`
	Position string `json:"position,omitempty"`
	All      bool   `json:"all,omitempty"`
}

// Normalize upper-cases the filter and folds "All" to empty.
func (f InjuryFilter) Normalize() InjuryFilter {
	f.Team = strings.ToUpper(strings.TrimSpace(f.Team))
	f.Position = strings.ToUpper(strings.TrimSpace(f.Position))
	if f.Team == "ALL" {
		f.Team = ""
	}
	if f.Position == "ALL" {
		f.Position = ""
	}
	return f
}

// InjurySummary counts report rows. The breakdowns cover fantasy-relevant
// players only.
type InjurySummary struct {
	Total           int            `json:"total_injuries"`
	FantasyRelevant int            `json:"skill_position_injuries"`
	ByStatus        map[string]int `json:"by_status"`
	ByPosition      map[string]int `json:"by_position"`
	ByTeam          map[string]int `json:"by_team"`
}

// SummarizeInjuries builds the summary of a full report.
func SummarizeInjuries(report []InjuryRecord) InjurySummary {
	s := InjurySummary{
		Total:      len(report),
		ByStatus:   make(map[string]int),
		ByPosition: make(map[string]int),
		ByTeam:     make(map[string]int),
	}
	for _, r := range report {
		if !r.FantasyRelevant() {
			continue
		}
		s.FantasyRelevant++
		status := r.Status
		if status == "" {
			status = "Unknown"
		}
		s.ByStatus[status]++
		s.ByPosition[r.Position]++
		s.ByTeam[r.Team]++
	}
	return s
}
