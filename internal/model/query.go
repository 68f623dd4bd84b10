package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Pagination limits.
const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// ErrInvalidQuery marks a request rejected before reaching storage.
var ErrInvalidQuery = eris.New("invalid query")

// SortColumns whitelists the stat columns a query may order by.
var SortColumns = map[string]bool{
	"fantasy_points":     true,
	"avg_fantasy_points": true,
	"passing_yards":      true,
	"passing_tds":        true,
	"rushing_yards":      true,
	"rushing_tds":        true,
	"receptions":         true,
	"targets":            true,
	"receiving_yards":    true,
	"receiving_tds":      true,
}

// QueryParams is the full parameter set of a stats query. Zero values mean
// "not filtered".
type QueryParams struct {
	Season    int    `json:"season"`
	Week      int    `json:"week,omitempty"`
	WeekStart int    `json:"week_start,omitempty"`
	WeekEnd   int    `json:"week_end,omitempty"`
	Position  string `json:"position,omitempty"`
	Team      string `json:"team,omitempty"`
	Player    string `json:"player,omitempty"`
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
	Sort      string `json:"sort,omitempty"`
}

// Normalize applies defaults, folds "All" filters to empty and validates.
// It returns an error wrapping ErrInvalidQuery for bad input.
func (q QueryParams) Normalize(maxWeek int) (QueryParams, error) {
	if q.Season <= 0 {
		return q, eris.Wrap(ErrInvalidQuery, "season is required")
	}
	if strings.EqualFold(q.Position, "all") {
		q.Position = ""
	}
	if q.Position != "" {
		p, ok := ParsePosition(q.Position)
		if !ok {
			return q, eris.Wrapf(ErrInvalidQuery, "unknown position %q", q.Position)
		}
		q.Position = string(p)
	}
	if strings.EqualFold(q.Team, "all") {
		q.Team = ""
	}
	q.Team = strings.ToUpper(strings.TrimSpace(q.Team))
	q.Player = strings.TrimSpace(q.Player)

	if q.Week != 0 {
		if q.WeekStart != 0 || q.WeekEnd != 0 {
			return q, eris.Wrap(ErrInvalidQuery, "week and week_start/week_end are exclusive")
		}
		q.WeekStart, q.WeekEnd = q.Week, q.Week
		q.Week = 0
	}
	if q.WeekStart != 0 && q.WeekEnd == 0 {
		q.WeekEnd = maxWeek
	}
	if q.WeekEnd != 0 && q.WeekStart == 0 {
		q.WeekStart = 1
	}
	if q.WeekStart < 0 || q.WeekEnd > maxWeek || q.WeekStart > q.WeekEnd {
		return q, eris.Wrapf(ErrInvalidQuery, "bad week range %d..%d", q.WeekStart, q.WeekEnd)
	}
	if q.WeekStart == 1 && q.WeekEnd == maxWeek {
		q.WeekStart, q.WeekEnd = 0, 0
	}

	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.Sort == "" {
		q.Sort = "fantasy_points"
	}
	if !SortColumns[q.Sort] {
		return q, eris.Wrapf(ErrInvalidQuery, "unsupported sort %q", q.Sort)
	}
	return q, nil
}

// HasWeekRange reports whether a narrower-than-season range is requested.
func (q QueryParams) HasWeekRange() bool {
	return q.WeekStart > 0 && q.WeekEnd > 0
}

// SingleWeek reports whether the range covers exactly one week.
func (q QueryParams) SingleWeek() bool {
	return q.HasWeekRange() && q.WeekStart == q.WeekEnd
}

// Offset returns the row offset of the requested page.
func (q QueryParams) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Source names which storage granularity answered a query.
type Source string

// Query sources.
const (
	SourceSeasonTotals Source = "season_totals"
	SourceWeekly       Source = "weekly"
	SourceWeeklyRange  Source = "weekly_range"
)

// StatRow is the uniform row shape returned by the query layer.
type StatRow struct {
	PlayerID   string   `json:"player_id"`
	PlayerName string   `json:"player_name"`
	Position   Position `json:"position"`
	Team       string   `json:"team"`
	Opponent   string   `json:"opponent,omitempty"`
	Season     int      `json:"season"`
	Week       int      `json:"week,omitempty"`
	StatLine
	GamesPlayed      int      `json:"games_played"`
	FantasyPoints    float64  `json:"fantasy_points"`
	AvgFantasyPoints float64  `json:"avg_fantasy_points"`
	ParticipationPct *float64 `json:"participation_pct,omitempty"`
}

// Page is one page of query results.
type Page struct {
	Rows       []StatRow `json:"rows"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
	Source     Source    `json:"source"`
}

// NewPage builds a page and derives TotalPages.
func NewPage(rows []StatRow, total int, q QueryParams, src Source) *Page {
	if rows == nil {
		rows = []StatRow{}
	}
	pages := 0
	if q.PageSize > 0 {
		pages = (total + q.PageSize - 1) / q.PageSize
	}
	return &Page{
		Rows:       rows,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pages,
		Source:     src,
	}
}
