// Package monitoring watches the refresh log and raises webhook alerts when
// refreshes fail, stall or stop landing new data.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/statline/internal/model"
)

// logScanLimit bounds how many refresh log entries one collection reads.
const logScanLimit = 10000

// LogReader lists refresh log entries, most recent first.
type LogReader interface {
	ListRefreshLog(ctx context.Context, limit int) ([]model.RefreshLogEntry, error)
}

// Snapshot is a point-in-time view of refresh health.
type Snapshot struct {
	// Unit attempts started within the lookback window.
	UnitsTotal     int     `json:"units_total"`
	UnitsCommitted int     `json:"units_committed"`
	UnitsFailed    int     `json:"units_failed"`
	UnitsLoading   int     `json:"units_loading"`
	FailRate       float64 `json:"fail_rate"`

	// Units still loading past the stuck threshold, oldest first.
	StuckUnits []string `json:"stuck_units,omitempty"`

	// LastCommitAt is the completion time of the newest committed unit on
	// record, regardless of the window.
	LastCommitAt *time.Time `json:"last_commit_at,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector builds snapshots from the refresh log.
type Collector struct {
	log        LogReader
	stuckAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. A unit loading for longer than
// stuckAfter is reported as stuck; zero disables the check.
func NewCollector(log LogReader, stuckAfter time.Duration) *Collector {
	return &Collector{log: log, stuckAfter: stuckAfter, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	entries, err := c.log.ListRefreshLog(ctx, logScanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list refresh log")
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	type stuck struct {
		key     string
		started time.Time
	}
	var stalled []stuck

	for _, e := range entries {
		if e.Status == model.UnitCommitted && e.CompletedAt != nil {
			if snap.LastCommitAt == nil || e.CompletedAt.After(*snap.LastCommitAt) {
				t := *e.CompletedAt
				snap.LastCommitAt = &t
			}
		}
		if e.Status == model.UnitLoading && c.stuckAfter > 0 && now.Sub(e.StartedAt) > c.stuckAfter {
			stalled = append(stalled, stuck{key: model.NewUnit(e.Season, e.Week).Key(), started: e.StartedAt})
		}

		if e.StartedAt.Before(cutoff) {
			continue
		}
		snap.UnitsTotal++
		switch e.Status {
		case model.UnitCommitted:
			snap.UnitsCommitted++
		case model.UnitFailed:
			snap.UnitsFailed++
		case model.UnitLoading:
			snap.UnitsLoading++
		}
	}

	if finished := snap.UnitsCommitted + snap.UnitsFailed; finished > 0 {
		snap.FailRate = float64(snap.UnitsFailed) / float64(finished)
	}

	sort.Slice(stalled, func(i, j int) bool { return stalled[i].started.Before(stalled[j].started) })
	for _, s := range stalled {
		snap.StuckUnits = append(snap.StuckUnits, s.key)
	}
	return snap, nil
}
