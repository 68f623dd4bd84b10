package model

// TableCount is the row count of one warehouse table for one season.
type TableCount struct {
	Table  string `json:"table" yaml:"table"`
	Season int    `json:"season" yaml:"season"`
	Rows   int64  `json:"rows" yaml:"rows"`
}

// WarehouseStats summarizes what the warehouse holds.
type WarehouseStats struct {
	Counts  []TableCount `json:"counts" yaml:"counts"`
	Seasons []int        `json:"seasons" yaml:"seasons"`
}

// Total returns the row count of table across all seasons.
func (s *WarehouseStats) Total(table string) int64 {
	var n int64
	for _, c := range s.Counts {
		if c.Table == table {
			n += c.Rows
		}
	}
	return n
}

// PlayerMatch is one hit of a player name search.
type PlayerMatch struct {
	PlayerID      string   `json:"player_id"`
	PlayerName    string   `json:"player_name"`
	Position      Position `json:"position"`
	Team          string   `json:"team"`
	Season        int      `json:"season"`
	FantasyPoints float64  `json:"fantasy_points"`
}

// TopFilter selects the leaders of one stat column.
type TopFilter struct {
	Season   int    `json:"season"`
	Position string `json:"position,omitempty"`
	Stat     string `json:"stat"`
	Limit    int    `json:"limit"`
}

// TrendFilter selects weekly lines for a set of players.
type TrendFilter struct {
	Names     []string `json:"names"`
	Season    int      `json:"season"`
	WeekStart int      `json:"week_start,omitempty"`
	WeekEnd   int      `json:"week_end,omitempty"`
}

// SlateFilter selects priced entries of one slate.
type SlateFilter struct {
	Season   int    `json:"season"`
	Week     int    `json:"week"`
	SlateID  string `json:"slate_id"`
	Position string `json:"position,omitempty"`
}
