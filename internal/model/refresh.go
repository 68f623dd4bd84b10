package model

import (
	"fmt"
	"time"
)

// UnitStatus is the lifecycle state of a refresh unit.
type UnitStatus string

// Refresh unit states. A unit moves pending -> loading -> committed|failed.
const (
	UnitPending   UnitStatus = "pending"
	UnitLoading   UnitStatus = "loading"
	UnitCommitted UnitStatus = "committed"
	UnitFailed    UnitStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s UnitStatus) Terminal() bool {
	return s == UnitCommitted || s == UnitFailed
}

// RefreshUnit is the atomic (season, week) scope of one fetch, transform and
// commit cycle. Week 0 is the whole-season unit of a historical season.
type RefreshUnit struct {
	Season int        `json:"season"`
	Week   int        `json:"week"`
	Status UnitStatus `json:"status"`
}

// NewUnit returns a pending unit.
func NewUnit(season, week int) RefreshUnit {
	return RefreshUnit{Season: season, Week: week, Status: UnitPending}
}

// Key identifies the unit independent of its status.
func (u RefreshUnit) Key() string {
	return fmt.Sprintf("%d/%02d", u.Season, u.Week)
}

// WholeSeason reports whether the unit loads pre-aggregated season totals.
func (u RefreshUnit) WholeSeason() bool {
	return u.Week == 0
}

func (u RefreshUnit) String() string {
	if u.WholeSeason() {
		return fmt.Sprintf("%d season", u.Season)
	}
	return fmt.Sprintf("%d week %d", u.Season, u.Week)
}

// UnitResult is the outcome of one unit in a refresh run.
type UnitResult struct {
	Season   int           `json:"season" yaml:"season"`
	Week     int           `json:"week" yaml:"week"`
	Status   UnitStatus    `json:"status" yaml:"status"`
	Rows     int64         `json:"rows" yaml:"rows"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Warning  string        `json:"warning,omitempty" yaml:"warning,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// RefreshReport aggregates the per-unit results of one refresh run.
type RefreshReport struct {
	RunID       string       `json:"run_id" yaml:"run_id"`
	Units       []UnitResult `json:"units" yaml:"units"`
	Skipped     int          `json:"skipped" yaml:"skipped"`
	Invalidated bool         `json:"cache_invalidated" yaml:"cache_invalidated"`
	Cancelled   bool         `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}

// Count returns how many unit results have the given status.
func (r *RefreshReport) Count(status UnitStatus) int {
	n := 0
	for _, u := range r.Units {
		if u.Status == status {
			n++
		}
	}
	return n
}

// RefreshLogEntry is a persisted record of one unit attempt.
type RefreshLogEntry struct {
	ID          int64      `json:"id"`
	RunID       string     `json:"run_id"`
	Season      int        `json:"season"`
	Week        int        `json:"week"`
	Status      UnitStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Rows        int64      `json:"rows"`
	Error       string     `json:"error,omitempty"`
}
