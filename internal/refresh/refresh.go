// Package refresh keeps the warehouse current. A run expands the requested
// seasons into (season, week) units, skips the units already present and
// loads the rest with bounded concurrency.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/statline/internal/model"
	"github.com/sells-group/statline/internal/transform"
	"github.com/sells-group/statline/internal/warehouse"
)

// Source retrieves raw batches for one unit.
type Source interface {
	Fetch(ctx context.Context, season, week int) (*model.RawBatch, error)
	FetchParticipation(ctx context.Context, season, week int) (*model.RawBatch, error)
}

// Invalidator drops every cached read.
type Invalidator interface {
	InvalidateAll()
}

// Observer receives unit and run outcomes.
type Observer interface {
	ObserveUnit(res model.UnitResult)
	ObserveRun(finished time.Time)
}

// Options configures an Orchestrator.
type Options struct {
	Policy        model.SeasonPolicy
	Scoring       transform.Scoring
	MaxConcurrent int
	// Participation loads snap shares after each current-season week.
	Participation bool
}

// Request selects the units of one run.
type Request struct {
	Seasons []int `json:"seasons"`
	// Weeks narrows current seasons; empty means every week.
	Weeks []int `json:"weeks,omitempty"`
	// Force reloads units that are already present.
	Force bool `json:"force"`
}

// Orchestrator runs refresh units against a store.
type Orchestrator struct {
	source   Source
	store    warehouse.Store
	cache    Invalidator
	observer Observer
	opts     Options

	inflight singleflight.Group
	active   atomic.Int32
	runMu    sync.Mutex
	last     *model.RefreshReport

	now func() time.Time
	log *zap.Logger
}

// New creates an orchestrator. cache and observer may be nil.
func New(src Source, store warehouse.Store, cache Invalidator, observer Observer, opts Options) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Orchestrator{
		source:   src,
		store:    store,
		cache:    cache,
		observer: observer,
		opts:     opts,
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "refresh")),
	}
}

// Plan returns the units a run for req would load.
func (o *Orchestrator) Plan(ctx context.Context, req Request) (work []model.RefreshUnit, skipped int, err error) {
	required, err := o.opts.Policy.RequiredUnits(req.Seasons, req.Weeks)
	if err != nil {
		return nil, 0, eris.Wrap(err, "refresh: required units")
	}
	if req.Force {
		return required, 0, nil
	}

	present, err := o.store.PresentUnits(ctx, req.Seasons)
	if err != nil {
		return nil, 0, eris.Wrap(err, "refresh: present units")
	}
	for _, u := range required {
		if present[u.Key()] {
			skipped++
			continue
		}
		work = append(work, u)
	}
	return work, skipped, nil
}

// Run loads every missing unit of req. Unit failures are reported in the
// result and never abort other units; the returned error covers only a
// request that could not be planned. When ctx is cancelled no new unit is
// started, units already started finish, and the rest are reported pending.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*model.RefreshReport, error) {
	runID := uuid.NewString()
	log := o.log.With(zap.String("run_id", runID))
	o.active.Add(1)
	defer o.active.Add(-1)

	work, skipped, err := o.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	report := &model.RefreshReport{RunID: runID, Skipped: skipped}
	if len(work) == 0 {
		log.Info("warehouse up to date", zap.Ints("seasons", req.Seasons), zap.Int("skipped", skipped))
		o.finish(report)
		return report, nil
	}

	log.Info("refresh started",
		zap.Int("units", len(work)),
		zap.Int("skipped", skipped),
		zap.Bool("force", req.Force),
	)

	results := make([]model.UnitResult, len(work))
	for i, u := range work {
		results[i] = model.UnitResult{Season: u.Season, Week: u.Week, Status: model.UnitPending}
	}

	var (
		g          errgroup.Group
		mu         sync.Mutex
		started    int
		presentIdx = make(map[int]bool)
	)
	g.SetLimit(o.opts.MaxConcurrent)

	// Started units run detached so cancellation never splits a commit.
	detached := context.WithoutCancel(ctx)
	for i, u := range work {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			mu.Lock()
			started++
			mu.Unlock()
			res, present := o.unit(detached, runID, u, req.Force)
			mu.Lock()
			results[i] = res
			if present {
				presentIdx[i] = true
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Units another run committed after this plan was taken count as skipped.
	for i, res := range results {
		if presentIdx[i] {
			report.Skipped++
			continue
		}
		report.Units = append(report.Units, res)
	}
	if started < len(work) {
		report.Cancelled = true
		for i := range report.Units {
			if report.Units[i].Status == model.UnitPending {
				report.Units[i].Error = "run cancelled before unit started"
			}
		}
	}

	if report.Count(model.UnitCommitted) > 0 && o.cache != nil {
		o.cache.InvalidateAll()
		report.Invalidated = true
	}

	log.Info("refresh complete",
		zap.Int("committed", report.Count(model.UnitCommitted)),
		zap.Int("failed", report.Count(model.UnitFailed)),
		zap.Int("pending", report.Count(model.UnitPending)),
		zap.Bool("cache_invalidated", report.Invalidated),
	)
	o.finish(report)
	return report, nil
}

// Running reports whether any run is in flight.
func (o *Orchestrator) Running() bool {
	return o.active.Load() > 0
}

// Last returns the report of the most recent run, or nil.
func (o *Orchestrator) Last() *model.RefreshReport {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.last
}

func (o *Orchestrator) finish(report *model.RefreshReport) {
	o.runMu.Lock()
	o.last = report
	o.runMu.Unlock()
	if o.observer != nil {
		o.observer.ObserveRun(o.now())
	}
}

type unitOutcome struct {
	res     model.UnitResult
	present bool
}

// unit runs u, sharing the execution with any concurrent run that asks for
// the same key. Unless force is set, presence is checked again inside the
// shared call, so a unit committed by another run after this run was
// planned is not fetched twice. The second return reports that case.
func (o *Orchestrator) unit(ctx context.Context, runID string, u model.RefreshUnit, force bool) (model.UnitResult, bool) {
	v, _, shared := o.inflight.Do(u.Key(), func() (any, error) {
		if !force && o.present(ctx, u) {
			return unitOutcome{res: model.UnitResult{Season: u.Season, Week: u.Week, Status: model.UnitCommitted}, present: true}, nil
		}
		return unitOutcome{res: o.execute(ctx, runID, u)}, nil
	})
	out := v.(unitOutcome)
	if shared {
		o.log.Debug("unit shared with concurrent run", zap.String("unit", u.String()))
	}
	return out.res, out.present
}

// present reports whether u is already in the store. Lookup errors count
// as absent.
func (o *Orchestrator) present(ctx context.Context, u model.RefreshUnit) bool {
	units, err := o.store.PresentUnits(ctx, []int{u.Season})
	if err != nil {
		o.log.Warn("presence check failed", zap.String("unit", u.String()), zap.Error(err))
		return false
	}
	if units[u.Key()] {
		o.log.Debug("unit committed by another run", zap.String("unit", u.String()))
		return true
	}
	return false
}

func (o *Orchestrator) execute(ctx context.Context, runID string, u model.RefreshUnit) model.UnitResult {
	log := o.log.With(zap.String("run_id", runID), zap.String("unit", u.String()))
	start := o.now()

	logID, err := o.store.StartUnit(ctx, runID, u)
	if err != nil {
		log.Warn("failed to record unit start", zap.Error(err))
	}
	u.Status = model.UnitLoading
	log.Debug("unit loading", zap.String("status", string(u.Status)))

	rows, warning, err := o.load(ctx, u)
	res := model.UnitResult{
		Season:   u.Season,
		Week:     u.Week,
		Rows:     rows,
		Warning:  warning,
		Duration: o.now().Sub(start),
	}

	if err != nil {
		res.Status = model.UnitFailed
		res.Rows = 0
		res.Error = err.Error()
		log.Error("unit failed", zap.Error(err), zap.Duration("elapsed", res.Duration))
		if logID > 0 {
			if logErr := o.store.FailUnit(ctx, logID, res.Error); logErr != nil {
				log.Error("failed to record unit failure", zap.Error(logErr))
			}
		}
	} else {
		res.Status = model.UnitCommitted
		log.Info("unit committed", zap.Int64("rows", rows), zap.Duration("elapsed", res.Duration))
		if logID > 0 {
			if logErr := o.store.CompleteUnit(ctx, logID, rows); logErr != nil {
				log.Error("failed to record unit completion", zap.Error(logErr))
			}
		}
	}

	if o.observer != nil {
		o.observer.ObserveUnit(res)
	}
	return res
}

// load fetches, transforms and commits one unit.
func (o *Orchestrator) load(ctx context.Context, u model.RefreshUnit) (int64, string, error) {
	batch, err := o.source.Fetch(ctx, u.Season, u.Week)
	if err != nil {
		return 0, "", err
	}
	records, err := transform.Transform(batch, o.opts.Scoring)
	if err != nil {
		return 0, "", err
	}

	if u.WholeSeason() {
		n, err := o.store.CommitSeasonTotals(ctx, u.Season, transform.Aggregate(records))
		return n, "", err
	}

	// Snap shares are merged before the weekly commit so the rows land
	// with their participation in one transaction.
	var parts []model.ParticipationRecord
	var warning string
	if o.opts.Participation && len(records) > 0 {
		parts, err = o.participation(ctx, u, records)
		if err != nil {
			o.log.Warn("participation not loaded", zap.String("unit", u.String()), zap.Error(err))
			warning = "participation: " + err.Error()
		}
	}

	n, err := o.store.CommitWeek(ctx, u, records)
	if err != nil {
		return 0, "", err
	}
	if len(parts) > 0 {
		if _, err := o.store.CommitParticipation(ctx, u, parts, nil); err != nil {
			o.log.Warn("snap table not stored", zap.String("unit", u.String()), zap.Error(err))
			warning = "participation: " + err.Error()
		}
	}
	return n, warning, nil
}

// participation fetches the unit's snap shares and merges them into records.
func (o *Orchestrator) participation(ctx context.Context, u model.RefreshUnit, records []model.WeeklyRecord) ([]model.ParticipationRecord, error) {
	batch, err := o.source.FetchParticipation(ctx, u.Season, u.Week)
	if err != nil {
		return nil, err
	}
	parts, err := transform.TransformParticipation(batch)
	if err != nil {
		return nil, err
	}
	matched := transform.MergeParticipation(records, parts)
	o.log.Debug("participation merged",
		zap.String("unit", u.String()),
		zap.Int("rows", len(parts)),
		zap.Int("matched", matched),
	)
	return parts, nil
}
