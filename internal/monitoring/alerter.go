package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertEmptyDataset AlertType = "empty_dataset"
	AlertStaleData    AlertType = "stale_data"
	AlertCacheHitRate AlertType = "cache_hit_rate"
)

// minCacheLookups is the sample size below which the hit rate is not judged.
const minCacheLookups = 20

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
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
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Facilities < max(a.cfg.MinFacilities, 1) {
		alerts = append(alerts, Alert{
			Type:     AlertEmptyDataset,
			Severity: "high",
			Message: fmt.Sprintf(
				"Dataset has %d facilities, expected at least %d",
				snap.Facilities, max(a.cfg.MinFacilities, 1),
			),
			Details: map[string]any{
				"facilities":        snap.Facilities,
				"with_availability": snap.WithAvailability,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleAfterMins > 0 && !snap.RefreshedAt.IsZero() && snap.DataAgeMins > float64(a.cfg.StaleAfterMins) {
		alerts = append(alerts, Alert{
			Type:     AlertStaleData,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Availability data is %.0f minutes old (threshold %d)",
				snap.DataAgeMins, a.cfg.StaleAfterMins,
			),
			Details: map[string]any{
				"refreshed_at":  snap.RefreshedAt,
				"data_age_mins": snap.DataAgeMins,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MinCacheHitRate > 0 && snap.CacheLookups >= minCacheLookups && snap.CacheHitRate < a.cfg.MinCacheHitRate {
		alerts = append(alerts, Alert{
			Type:     AlertCacheHitRate,
			Severity: "low",
			Message: fmt.Sprintf(
				"Travel-time cache hit rate %.1f%% is below %.1f%%",
				snap.CacheHitRate*100, a.cfg.MinCacheHitRate*100,
			),
			Details: map[string]any{
				"hit_rate": snap.CacheHitRate,
				"lookups":  snap.CacheLookups,
				"entries":  snap.CacheEntries,
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

// sendWebhook posts a single alert to the webhook URL.
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
