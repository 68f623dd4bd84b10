package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/config"
)

// RunState reports whether a refresh run is in flight.
type RunState interface {
	Running() bool
}

// Checker runs periodic refresh health checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	runs      RunState

	mu     sync.Mutex
	firing map[AlertType]bool
}

// NewChecker creates a background alert checker. runs may be nil.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig, runs RunState) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		runs:      runs,
		firing:    make(map[AlertType]bool),
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting refresh health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("refresh health checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check collects one snapshot of the refresh log and sends the alerts it
// triggers. Stale data is not reported while a refresh is running, and an
// alert already sent is not repeated until a check clears it. It returns
// the alerts sent.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect refresh health", zap.Error(err))
		return nil
	}

	running := c.runs != nil && c.runs.Running()
	triggered := c.alerter.Evaluate(snap)

	c.mu.Lock()
	seen := make(map[AlertType]bool, len(triggered))
	var alerts []Alert
	for _, a := range triggered {
		if a.Type == AlertStaleData && running {
			log.Debug("monitoring: stale data deferred, refresh in flight")
			seen[a.Type] = c.firing[a.Type]
			continue
		}
		seen[a.Type] = true
		if !c.firing[a.Type] {
			alerts = append(alerts, a)
		}
	}
	c.firing = seen
	c.mu.Unlock()

	if len(alerts) == 0 {
		log.Debug("monitoring: no new alerts",
			zap.Int("still_firing", len(triggered)),
			zap.Bool("refresh_running", running),
		)
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: refresh health check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
		zap.Int("units_loading", snap.UnitsLoading),
	)
	return alerts
}
