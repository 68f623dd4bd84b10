package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRefreshFailureRate AlertType = "refresh_failure_rate"
	AlertStaleData          AlertType = "stale_data"
	AlertStuckUnits         AlertType = "stuck_units"
)

// minFinishedUnits is the smallest sample the failure rate alert fires on.
const minFinishedUnits = 3

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt

	finished := snap.UnitsCommitted + snap.UnitsFailed
	if finished >= minFinishedUnits && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRefreshFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Refresh failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.UnitsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.UnitsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleAfterHours > 0 && snap.LastCommitAt != nil {
		age := now.Sub(*snap.LastCommitAt)
		if age > time.Duration(a.cfg.StaleAfterHours)*time.Hour {
			alerts = append(alerts, Alert{
				Type:     AlertStaleData,
				Severity: "medium",
				Message: fmt.Sprintf(
					"No unit committed for %s (threshold %dh)",
					age.Round(time.Minute), a.cfg.StaleAfterHours,
				),
				Details: map[string]any{
					"last_commit_at": snap.LastCommitAt.Format(time.RFC3339),
					"age_hours":      int(age.Hours()),
				},
				Timestamp: now,
			})
		}
	}

	if len(snap.StuckUnits) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStuckUnits,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d unit(s) loading for over %dm: %s",
				len(snap.StuckUnits), a.cfg.StuckAfterMinutes, strings.Join(snap.StuckUnits, ", "),
			),
			Details: map[string]any{
				"units": snap.StuckUnits,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
