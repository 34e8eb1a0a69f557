package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oraclewatch/core/internal/config"
	"github.com/oraclewatch/core/internal/metrics"
	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

// notificationBroadcaster mirrors delivery attempts onto the live dashboard
// stream. Optional.
type notificationBroadcaster interface {
	PublishNotification(alertID string, record models.NotificationRecord)
}

// Notifier is the delivery collaborator behind the engine's escalation seam.
// Each channel class (email, sms, webhook, chat, pagerduty) is relayed as an
// HTTP post to its configured endpoint; the notifier reports per-channel
// outcomes back to the engine, which records them. Retries and backoff belong
// to the relay, not here.
type Notifier struct {
	channels    map[string]config.ChannelConfig
	client      *http.Client
	logger      logger.Logger
	broadcaster notificationBroadcaster
}

func NewNotifier(cfg config.IntegrationsConfig, log logger.Logger, broadcaster notificationBroadcaster) *Notifier {
	return &Notifier{
		channels:    cfg.Channels,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      log,
		broadcaster: broadcaster,
	}
}

// escalationPayload is what channel relays receive.
type escalationPayload struct {
	AlertID     string          `json:"alert_id"`
	Source      string          `json:"source"`
	Symbol      string          `json:"symbol,omitempty"`
	Severity    models.Severity `json:"severity"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Level       int             `json:"level"`
	LevelName   string          `json:"level_name"`
	Channel     string          `json:"channel"`
	Timestamp   time.Time       `json:"timestamp"`
}

// OnEscalate attempts delivery to every channel of the fired level and
// returns one record per attempt. Failures never abort the remaining
// channels.
func (n *Notifier) OnEscalate(alert *models.Alert, level models.EscalationLevel) []models.NotificationRecord {
	records := make([]models.NotificationRecord, 0, len(level.Channels))

	for _, channel := range level.Channels {
		record := models.NotificationRecord{
			Channel:   channel,
			Timestamp: time.Now(),
			Outcome:   models.NotificationSent,
		}

		if err := n.deliver(channel, alert, level); err != nil {
			record.Outcome = models.NotificationFailed
			record.Error = err.Error()
			n.logger.Error("Notification delivery failed",
				"alertId", alert.ID,
				"channel", channel,
				"level", level.Level,
				"error", err,
			)
		} else {
			n.logger.Info("Notification dispatched", "alertId", alert.ID, "channel", channel, "level", level.Level)
		}

		metrics.NotificationAttempts.WithLabelValues(channel, string(record.Outcome)).Inc()
		if n.broadcaster != nil {
			n.broadcaster.PublishNotification(alert.ID, record)
		}
		records = append(records, record)
	}

	return records
}

func (n *Notifier) deliver(channel string, alert *models.Alert, level models.EscalationLevel) error {
	cfg, ok := n.channels[channel]
	if !ok || !cfg.Enabled {
		return fmt.Errorf("channel %q is not configured", channel)
	}

	payload := escalationPayload{
		AlertID:     alert.ID,
		Source:      alert.Source,
		Symbol:      alert.Symbol,
		Severity:    alert.Severity,
		Title:       alert.Title,
		Description: alert.Description,
		Level:       level.Level,
		LevelName:   level.Name,
		Channel:     channel,
		Timestamp:   time.Now(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	timeout := 10 * time.Second
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	return nil
}
