// Package scheduler triggers warehouse refreshes on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/model"
	"github.com/sells-group/statline/internal/refresh"
)

// Runner executes one refresh run.
type Runner interface {
	Run(ctx context.Context, req refresh.Request) (*model.RefreshReport, error)
}

// InjuryRefresher replaces the stored injury report.
type InjuryRefresher interface {
	RefreshInjuries(ctx context.Context) (int64, error)
}

// Scheduler runs the same refresh request on every tick. A tick that fires
// while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	req      refresh.Request
	ctx      context.Context
	entry    cron.EntryID
	injuries bool
	log      *zap.Logger
}

// New registers req on the standard five-field cron spec (descriptors like
// "@hourly" are accepted). ctx bounds every triggered run.
func New(ctx context.Context, runner Runner, spec string, req refresh.Request) (*Scheduler, error) {
	log := zap.L().With(zap.String("component", "scheduler"))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{log.Sugar()}),
		cron.SkipIfStillRunning(cronLogger{log.Sugar()}),
	))
	s := &Scheduler{
		cron:   c,
		runner: runner,
		req:    req,
		ctx:    ctx,
		log:    log,
	}
	id, err := c.AddFunc(spec, s.tick)
	if err != nil {
		return nil, eris.Wrapf(err, "scheduler: register %q", spec)
	}
	s.entry = id
	return s, nil
}

// WithInjuries makes each run also refresh the injury report when the
// runner supports it.
func (s *Scheduler) WithInjuries(on bool) *Scheduler {
	s.injuries = on
	return s
}

// Start starts the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started",
		zap.Ints("seasons", s.req.Seasons),
		zap.Time("next", s.Next()),
	)
}

// Stop stops scheduling. The returned context is done once a running
// refresh has finished.
func (s *Scheduler) Stop() context.Context {
	done := s.cron.Stop()
	s.log.Info("scheduler stopped")
	return done
}

// Next returns the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunNow runs the scheduled request immediately on the caller's goroutine.
func (s *Scheduler) RunNow() (*model.RefreshReport, error) {
	return s.run()
}

func (s *Scheduler) tick() {
	if _, err := s.run(); err != nil {
		s.log.Error("scheduled refresh failed", zap.Error(err))
	}
}

func (s *Scheduler) run() (*model.RefreshReport, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "scheduler: context done")
	}
	report, err := s.runner.Run(s.ctx, s.req)
	if err != nil {
		return nil, err
	}
	s.refreshInjuries()
	s.log.Info("scheduled refresh finished",
		zap.String("run_id", report.RunID),
		zap.Int("committed", report.Count(model.UnitCommitted)),
		zap.Int("failed", report.Count(model.UnitFailed)),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// refreshInjuries runs after the stats refresh. A failure is logged and
// does not fail the run.
func (s *Scheduler) refreshInjuries() {
	ir, ok := s.runner.(InjuryRefresher)
	if !s.injuries || !ok {
		return
	}
	n, err := ir.RefreshInjuries(s.ctx)
	if err != nil {
		s.log.Warn("scheduled injury refresh failed", zap.Error(err))
		return
	}
	s.log.Info("scheduled injury refresh finished", zap.Int64("rows", n))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
