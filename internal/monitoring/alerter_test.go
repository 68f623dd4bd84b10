package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/statline/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.25,
		StaleAfterHours:      192,
	})

	recent := collectNow.Add(-time.Hour)
	snap := &Snapshot{
		UnitsTotal:     10,
		UnitsCommitted: 9,
		UnitsFailed:    1,
		FailRate:       0.1,
		LastCommitAt:   &recent,
		LookbackHours:  24,
		CollectedAt:    collectNow,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	snap := &Snapshot{
		UnitsTotal:     4,
		UnitsCommitted: 2,
		UnitsFailed:    2,
		FailRate:       0.5,
		LookbackHours:  24,
		CollectedAt:    collectNow,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRefreshFailureRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "50.0%")
	assert.Equal(t, collectNow, alerts[0].Timestamp)
}

func TestAlerter_Evaluate_MinimumUnitsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	snap := &Snapshot{
		UnitsTotal:  2,
		UnitsFailed: 2,
		FailRate:    1,
		CollectedAt: collectNow,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_Stale(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 192})

	old := collectNow.Add(-10 * 24 * time.Hour)
	alerts := a.Evaluate(&Snapshot{LastCommitAt: &old, CollectedAt: collectNow})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleData, alerts[0].Type)
	assert.Equal(t, 240, alerts[0].Details["age_hours"])
}

func TestAlerter_Evaluate_StaleIgnoresEmptyWarehouse(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 1})
	assert.Empty(t, a.Evaluate(&Snapshot{CollectedAt: collectNow}))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		StaleAfterHours:      24,
		StuckAfterMinutes:    30,
	})

	old := collectNow.Add(-48 * time.Hour)
	snap := &Snapshot{
		UnitsTotal:     6,
		UnitsCommitted: 3,
		UnitsFailed:    3,
		FailRate:       0.5,
		StuckUnits:     []string{"2025/07"},
		LastCommitAt:   &old,
		LookbackHours:  24,
		CollectedAt:    collectNow,
	}

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 3)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertRefreshFailureRate])
	assert.True(t, types[AlertStaleData])
	assert.True(t, types[AlertStuckUnits])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRefreshFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertStuckUnits, Severity: "high", Message: "test alert 2"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertStaleData, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertStaleData, Message: "test"}})
	assert.Equal(t, 0, sent)
}
