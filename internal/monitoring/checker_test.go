package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/config"
	"github.com/sells-group/statline/internal/model"
)

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		FailureRateThreshold: 0.25,
		LookbackWindowHours:  24,
	}
	log := &mockLog{entries: []model.RefreshLogEntry{
		entry(7, model.UnitFailed, time.Hour),
		entry(6, model.UnitFailed, time.Hour),
		entry(5, model.UnitCommitted, time.Hour),
	}}
	checker := NewChecker(newTestCollector(log, 0), NewAlerter(cfg), cfg, nil)

	alerts := checker.Check(context.Background(), zap.NewNop())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRefreshFailureRate, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	checker := NewChecker(newTestCollector(&mockLog{err: errors.New("boom")}, 0), NewAlerter(cfg), cfg, nil)

	assert.Nil(t, checker.Check(context.Background(), zap.NewNop()))
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24}
	checker := NewChecker(newTestCollector(&mockLog{}, 0), NewAlerter(cfg), cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(newTestCollector(&mockLog{}, 0), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

type fakeRuns struct{ running atomic.Bool }

func (f *fakeRuns) Running() bool { return f.running.Load() }

func staleLog() *mockLog {
	return &mockLog{entries: []model.RefreshLogEntry{
		entry(7, model.UnitCommitted, 200*time.Hour),
	}}
}

func TestChecker_StaleDataDeferredWhileRefreshRuns(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{WebhookURL: ts.URL, StaleAfterHours: 192, LookbackWindowHours: 24 * 30}
	runs := &fakeRuns{}
	runs.running.Store(true)
	checker := NewChecker(newTestCollector(staleLog(), 0), NewAlerter(cfg), cfg, runs)

	assert.Empty(t, checker.Check(context.Background(), zap.NewNop()))
	assert.Zero(t, received.Load())

	runs.running.Store(false)
	alerts := checker.Check(context.Background(), zap.NewNop())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleData, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_FiringAlertNotRepeated(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{WebhookURL: ts.URL, StaleAfterHours: 192, LookbackWindowHours: 24 * 30}
	log := staleLog()
	checker := NewChecker(newTestCollector(log, 0), NewAlerter(cfg), cfg, nil)

	require.Len(t, checker.Check(context.Background(), zap.NewNop()), 1)
	assert.Empty(t, checker.Check(context.Background(), zap.NewNop()))
	assert.Equal(t, int32(1), received.Load())

	// A fresh commit clears the alert; going stale again re-sends it.
	log.entries = []model.RefreshLogEntry{entry(8, model.UnitCommitted, time.Hour)}
	assert.Empty(t, checker.Check(context.Background(), zap.NewNop()))
	log.entries = staleLog().entries
	require.Len(t, checker.Check(context.Background(), zap.NewNop()), 1)
	assert.Equal(t, int32(2), received.Load())
}
