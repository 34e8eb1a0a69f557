package alerting

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oraclewatch/core/internal/metrics"
	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

// EscalateFunc is the seam to the notification-delivery collaborator. It is
// invoked outside the engine lock whenever a level fires and returns the
// delivery attempts it made, which the engine records verbatim.
type EscalateFunc func(alert *models.Alert, level models.EscalationLevel) []models.NotificationRecord

// EventSink receives lifecycle events for fan-out to dashboards. Nil sinks
// are allowed.
type EventSink interface {
	PublishAlertEvent(event string, alert *models.Alert)
}

// Config carries the engine's tunables. Zero values fall back to the
// production defaults.
type Config struct {
	DedupWindow             time.Duration
	SuppressionLogRetention time.Duration
	CleanupInterval         time.Duration

	Clock      Clock
	OnEscalate EscalateFunc
	Events     EventSink
}

const (
	defaultDedupWindow     = time.Hour
	defaultLogRetention    = 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

// Disposition says what happened to a submitted candidate.
type Disposition string

const (
	DispositionCreated      Disposition = "created"
	DispositionDeduplicated Disposition = "deduplicated"
	DispositionSuppressed   Disposition = "suppressed"
)

// CreateResult is the full outcome of CreateAlert. Alert is nil unless the
// candidate was actually created.
type CreateResult struct {
	Disposition Disposition   `json:"disposition"`
	Alert       *models.Alert `json:"alert,omitempty"`

	DuplicateOf    string `json:"duplicate_of,omitempty"`
	DuplicateCount int    `json:"duplicate_count,omitempty"`
	RuleID         string `json:"rule_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Engine is the alert lifecycle manager: it runs candidates through dedup and
// suppression, stores alerts, drives acknowledge/resolve transitions, owns the
// escalation scheduler, and aggregates stats. Alerts are never deleted, only
// transitioned, so historical stats stay queryable.
type Engine struct {
	clock       Clock
	logger      logger.Logger
	dedup       *Deduplicator
	suppression *SuppressionEngine
	scheduler   *Scheduler
	onEscalate  EscalateFunc
	events      EventSink

	cleanupInterval time.Duration

	mu     sync.RWMutex
	alerts map[string]*models.Alert
	// order keeps creation sequence so queries return newest first even when
	// a coarse clock stamps several alerts identically.
	order []string

	suppressedCount int64
	dedupedCount    int64

	closeMu      sync.Mutex
	cleanupTimer Timer
	closed       bool
}

func NewEngine(cfg Config, log logger.Logger) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = NewRealClock()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}
	if cfg.SuppressionLogRetention <= 0 {
		cfg.SuppressionLogRetention = defaultLogRetention
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}

	e := &Engine{
		clock:           cfg.Clock,
		logger:          log,
		dedup:           NewDeduplicator(cfg.DedupWindow, cfg.Clock),
		suppression:     NewSuppressionEngine(cfg.SuppressionLogRetention, cfg.Clock, log),
		onEscalate:      cfg.OnEscalate,
		events:          cfg.Events,
		cleanupInterval: cfg.CleanupInterval,
		alerts:          make(map[string]*models.Alert),
	}
	e.scheduler = NewScheduler(cfg.Clock, log, e.executeLevel)

	if err := e.scheduler.AddPolicy(defaultPolicy()); err != nil {
		// Only reachable if defaultPolicy itself is malformed.
		log.Error("Failed to register default escalation policy", "error", err)
	}

	return e
}

// defaultPolicy is pre-registered under the "default" slot: email+webhook
// after 5 minutes, then email+sms+chat after 10 more, then pagerduty joins
// after another 15. The last level does not auto-escalate further.
func defaultPolicy() *models.EscalationPolicy {
	return &models.EscalationPolicy{
		ID:   models.DefaultPolicyID,
		Name: "Default escalation",
		Levels: []models.EscalationLevel{
			{
				Level:                 1,
				Name:                  "First responder",
				TimeoutMs:             (5 * time.Minute).Milliseconds(),
				Channels:              []string{"email", "webhook"},
				RequireAcknowledgment: true,
				AutoEscalate:          true,
			},
			{
				Level:                 2,
				Name:                  "Team page",
				TimeoutMs:             (10 * time.Minute).Milliseconds(),
				Channels:              []string{"email", "sms", "chat"},
				RequireAcknowledgment: true,
				AutoEscalate:          true,
				NotifyOnEscalation:    true,
			},
			{
				Level:                 3,
				Name:                  "Incident commander",
				TimeoutMs:             (15 * time.Minute).Milliseconds(),
				Channels:              []string{"email", "sms", "chat", "pagerduty"},
				RequireAcknowledgment: true,
				NotifyOnEscalation:    true,
			},
		},
		DefaultChannels: []string{"email"},
	}
}

// Start arms the periodic cleanup sweep. Close stops it.
func (e *Engine) Start() {
	e.scheduleCleanup()
	e.logger.Info("Alert engine started", "cleanupInterval", e.cleanupInterval.String())
}

func (e *Engine) scheduleCleanup() {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	if e.closed {
		return
	}
	e.cleanupTimer = e.clock.AfterFunc(e.cleanupInterval, func() {
		e.RunCleanup()
		e.scheduleCleanup()
	})
}

// RunCleanup sweeps expired dedup records and suppression-log entries once.
func (e *Engine) RunCleanup() {
	dedupRemoved := e.dedup.Cleanup()
	suppressionRemoved := e.suppression.CleanupExpired()
	if dedupRemoved > 0 || suppressionRemoved > 0 {
		e.logger.Debug("Alert bookkeeping sweep",
			"dedupRemoved", dedupRemoved,
			"suppressionRemoved", suppressionRemoved,
		)
	}
}

func (e *Engine) Close() {
	e.closeMu.Lock()
	e.closed = true
	if e.cleanupTimer != nil {
		e.cleanupTimer.Stop()
	}
	e.closeMu.Unlock()

	e.mu.RLock()
	ids := make([]string, 0, len(e.alerts))
	for id := range e.alerts {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	for _, id := range ids {
		e.scheduler.Cancel(id)
	}
}

// CreateAlert runs the candidate through dedup then suppression and, if both
// pass, registers a new active alert and starts its escalation chain. A
// duplicate or suppressed candidate produces no alert; the result says why.
func (e *Engine) CreateAlert(c models.AlertCandidate) (*CreateResult, error) {
	if c.Source == "" {
		return nil, fmt.Errorf("alert candidate requires a source")
	}
	if c.Title == "" {
		return nil, fmt.Errorf("alert candidate requires a title")
	}
	if !c.Severity.Valid() {
		return nil, fmt.Errorf("alert candidate has unknown severity %q", c.Severity)
	}

	if dup := e.dedup.Check(c); dup.IsDuplicate {
		e.mu.Lock()
		e.dedupedCount++
		e.mu.Unlock()
		metrics.AlertsDeduplicated.WithLabelValues(c.Source).Inc()
		e.logger.Debug("Candidate deduplicated", "source", c.Source, "title", c.Title, "count", dup.Count)
		return &CreateResult{
			Disposition:    DispositionDeduplicated,
			DuplicateOf:    dup.DuplicateOf,
			DuplicateCount: dup.Count,
		}, nil
	}

	if decision := e.suppression.ShouldSuppress(c); decision.Suppressed {
		e.mu.Lock()
		e.suppressedCount++
		e.mu.Unlock()
		metrics.AlertsSuppressed.WithLabelValues(decision.RuleID).Inc()
		e.logger.Info("Candidate suppressed", "source", c.Source, "title", c.Title, "ruleId", decision.RuleID, "reason", decision.Reason)
		return &CreateResult{
			Disposition: DispositionSuppressed,
			RuleID:      decision.RuleID,
			Reason:      decision.Reason,
		}, nil
	}

	now := e.clock.Now()
	alert := &models.Alert{
		ID:                  uuid.NewString(),
		Source:              c.Source,
		Symbol:              c.Symbol,
		Severity:            c.Severity,
		Title:               c.Title,
		Description:         c.Description,
		Metadata:            c.Metadata,
		Status:              models.StatusActive,
		EscalationHistory:   []models.EscalationRecord{},
		NotificationHistory: []models.NotificationRecord{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	e.mu.Lock()
	e.alerts[alert.ID] = alert
	e.order = append(e.order, alert.ID)
	snapshot := cloneAlert(alert)
	e.mu.Unlock()

	metrics.AlertsCreated.WithLabelValues(c.Source, string(c.Severity)).Inc()
	e.logger.Info("Alert created", "alertId", alert.ID, "source", c.Source, "severity", c.Severity, "title", c.Title)

	e.scheduler.Start(alert.ID, "")
	e.publish("alert.created", snapshot)

	return &CreateResult{Disposition: DispositionCreated, Alert: snapshot}, nil
}

// AcknowledgeAlert marks the alert acknowledged and cancels its escalation
// chain. Unknown ids return nil; acknowledging an already acknowledged or
// resolved alert is a no-op returning the alert as-is.
func (e *Engine) AcknowledgeAlert(id, by string) *models.Alert {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if alert.Status == models.StatusAcknowledged || alert.Status == models.StatusResolved {
		snapshot := cloneAlert(alert)
		e.mu.Unlock()
		return snapshot
	}
	now := e.clock.Now()
	alert.Status = models.StatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = by
	alert.UpdatedAt = now
	snapshot := cloneAlert(alert)
	e.mu.Unlock()

	e.scheduler.Cancel(id)
	e.logger.Info("Alert acknowledged", "alertId", id, "by", by)
	e.publish("alert.acknowledged", snapshot)
	return snapshot
}

// ResolveAlert marks the alert resolved and cancels its escalation chain.
// Resolved is terminal; resolving twice returns the already-resolved alert.
func (e *Engine) ResolveAlert(id, by string) *models.Alert {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if alert.Status == models.StatusResolved {
		snapshot := cloneAlert(alert)
		e.mu.Unlock()
		return snapshot
	}
	now := e.clock.Now()
	alert.Status = models.StatusResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = by
	alert.UpdatedAt = now
	snapshot := cloneAlert(alert)
	e.mu.Unlock()

	e.scheduler.Cancel(id)
	e.logger.Info("Alert resolved", "alertId", id, "by", by)
	e.publish("alert.resolved", snapshot)
	return snapshot
}

func (e *Engine) GetAlert(id string) *models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	alert, ok := e.alerts[id]
	if !ok {
		return nil
	}
	return cloneAlert(alert)
}

// GetAlerts returns matching alerts newest-created first.
func (e *Engine) GetAlerts(q models.AlertQuery) []*models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := []*models.Alert{}
	for i := len(e.order) - 1; i >= 0; i-- {
		alert := e.alerts[e.order[i]]
		if q.Status != "" && alert.Status != q.Status {
			continue
		}
		if q.Severity != "" && alert.Severity != q.Severity {
			continue
		}
		if q.Source != "" && alert.Source != q.Source {
			continue
		}
		if q.Symbol != "" && alert.Symbol != q.Symbol {
			continue
		}
		out = append(out, cloneAlert(alert))
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Stats aggregates counts by severity and status plus resolution and
// suppression/escalation rates. SuppressionRate divides suppressed candidates
// by all candidates processed (created + suppressed + deduplicated);
// EscalationRate divides alerts with escalation history by stored alerts.
// Everything is zero-safe for an empty engine.
func (e *Engine) Stats() models.AlertStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := models.AlertStats{
		Total:      len(e.alerts),
		BySeverity: make(map[models.Severity]int),
		ByStatus:   make(map[models.AlertStatus]int),
	}

	var resolutionSum float64
	var resolved int
	var escalated int
	for _, alert := range e.alerts {
		stats.BySeverity[alert.Severity]++
		stats.ByStatus[alert.Status]++
		if alert.ResolvedAt != nil {
			resolutionSum += float64(alert.ResolvedAt.Sub(alert.CreatedAt).Milliseconds())
			resolved++
		}
		if len(alert.EscalationHistory) > 0 {
			escalated++
		}
	}
	if resolved > 0 {
		stats.AverageResolutionTimeMs = resolutionSum / float64(resolved)
	}

	processed := int64(len(e.alerts)) + e.suppressedCount + e.dedupedCount
	if processed > 0 {
		stats.SuppressionRate = float64(e.suppressedCount) / float64(processed)
	}
	if len(e.alerts) > 0 {
		stats.EscalationRate = float64(escalated) / float64(len(e.alerts))
	}
	return stats
}

// RecordNotification appends a delivery attempt the collaborator reported
// out of band (e.g. an async retry outcome).
func (e *Engine) RecordNotification(alertID string, rec models.NotificationRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.alerts[alertID]
	if !ok {
		return false
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = e.clock.Now()
	}
	alert.NotificationHistory = append(alert.NotificationHistory, rec)
	alert.UpdatedAt = e.clock.Now()
	return true
}

// Suppression rule configuration (delegated).

func (e *Engine) AddSuppressionRule(rule *models.SuppressionRule) error {
	return e.suppression.AddRule(rule)
}

func (e *Engine) RemoveSuppressionRule(id string) bool { return e.suppression.RemoveRule(id) }

func (e *Engine) SetSuppressionRuleEnabled(id string, enabled bool) bool {
	return e.suppression.SetRuleEnabled(id, enabled)
}

func (e *Engine) SuppressionRules() []*models.SuppressionRule { return e.suppression.Rules() }

// Escalation policy configuration (delegated).

func (e *Engine) AddEscalationPolicy(policy *models.EscalationPolicy) error {
	return e.scheduler.AddPolicy(policy)
}

func (e *Engine) EscalationPolicies() []*models.EscalationPolicy { return e.scheduler.Policies() }

func (e *Engine) EscalationPolicy(id string) (*models.EscalationPolicy, bool) {
	return e.scheduler.Policy(id)
}

// executeLevel is the scheduler's callback for a fired timer. The status
// check happens here, after taking the lock, so a cancel that lost the race
// to an in-flight timer still stops the chain.
func (e *Engine) executeLevel(alertID string, policy *models.EscalationPolicy, levelIdx int) bool {
	e.mu.Lock()
	alert, ok := e.alerts[alertID]
	if !ok {
		e.mu.Unlock()
		return false
	}
	if alert.Status == models.StatusAcknowledged || alert.Status == models.StatusResolved {
		e.mu.Unlock()
		return false
	}

	level := policy.Levels[levelIdx]
	channels := level.Channels
	if len(channels) == 0 {
		channels = policy.DefaultChannels
	}

	now := e.clock.Now()
	alert.EscalationLevel = level.Level
	alert.EscalationHistory = append(alert.EscalationHistory, models.EscalationRecord{
		Level:     level.Level,
		Timestamp: now,
		Reason:    "acknowledgment timeout",
		Channels:  channels,
	})
	if level.NotifyOnEscalation {
		alert.Status = models.StatusEscalated
	}
	alert.UpdatedAt = now
	snapshot := cloneAlert(alert)
	e.mu.Unlock()

	metrics.EscalationsFired.WithLabelValues(policy.ID, strconv.Itoa(level.Level)).Inc()
	e.logger.Warn("Alert escalated",
		"alertId", alertID,
		"policyId", policy.ID,
		"level", level.Level,
		"channels", channels,
	)
	e.publish("alert.escalated", snapshot)

	// Invoked outside the lock: delivery may be slow. State advancement is
	// not rolled back on delivery failure.
	if e.onEscalate != nil {
		records := e.onEscalate(snapshot, level)
		if len(records) > 0 {
			e.recordNotifications(alertID, records)
		}
	}
	return true
}

func (e *Engine) recordNotifications(alertID string, records []models.NotificationRecord) {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.alerts[alertID]
	if !ok {
		return
	}
	for _, rec := range records {
		if rec.Timestamp.IsZero() {
			rec.Timestamp = now
		}
		alert.NotificationHistory = append(alert.NotificationHistory, rec)
	}
	alert.UpdatedAt = now
}

func (e *Engine) publish(event string, alert *models.Alert) {
	if e.events != nil {
		e.events.PublishAlertEvent(event, alert)
	}
}

func cloneAlert(a *models.Alert) *models.Alert {
	out := *a
	out.EscalationHistory = append([]models.EscalationRecord(nil), a.EscalationHistory...)
	out.NotificationHistory = append([]models.NotificationRecord(nil), a.NotificationHistory...)
	if a.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		out.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}
