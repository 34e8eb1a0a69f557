package alerting

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

type captureNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	fail  bool
}

type notifyCall struct {
	alertID string
	level   int
}

func (c *captureNotifier) onEscalate(alert *models.Alert, level models.EscalationLevel) []models.NotificationRecord {
	c.mu.Lock()
	c.calls = append(c.calls, notifyCall{alertID: alert.ID, level: level.Level})
	c.mu.Unlock()

	records := make([]models.NotificationRecord, 0, len(level.Channels))
	for _, channel := range level.Channels {
		rec := models.NotificationRecord{Channel: channel, Outcome: models.NotificationSent}
		if c.fail {
			rec.Outcome = models.NotificationFailed
			rec.Error = "relay unreachable"
		}
		records = append(records, rec)
	}
	return records
}

func (c *captureNotifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock, *captureNotifier) {
	t.Helper()
	clock := newFakeClock(time.Unix(1700000000, 0))
	notifier := &captureNotifier{}
	engine := NewEngine(Config{
		Clock:      clock,
		OnEscalate: notifier.onEscalate,
	}, logger.NewNop())
	t.Cleanup(engine.Close)
	return engine, clock, notifier
}

func syncCandidate() models.AlertCandidate {
	return models.AlertCandidate{
		Source:      "sync",
		Symbol:      "ETH/USD",
		Severity:    models.SeverityHigh,
		Title:       "lag",
		Description: "oracle sync lag above threshold",
	}
}

func TestCreateAlertValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.CreateAlert(models.AlertCandidate{Severity: models.SeverityLow, Title: "t"})
	assert.Error(t, err, "missing source accepted")

	_, err = engine.CreateAlert(models.AlertCandidate{Source: "s", Severity: models.SeverityLow})
	assert.Error(t, err, "missing title accepted")

	_, err = engine.CreateAlert(models.AlertCandidate{Source: "s", Severity: "urgent", Title: "t"})
	assert.Error(t, err, "unknown severity accepted")
}

func TestCreateAlertDedupIdempotence(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	first, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)
	require.Equal(t, DispositionCreated, first.Disposition)
	require.NotNil(t, first.Alert)
	assert.Equal(t, models.StatusActive, first.Alert.Status)
	assert.Equal(t, 0, first.Alert.EscalationLevel)

	// N-1 repeats collapse into the same occurrence with counts 2..N.
	for want := 2; want <= 6; want++ {
		res, err := engine.CreateAlert(syncCandidate())
		require.NoError(t, err)
		assert.Equal(t, DispositionDeduplicated, res.Disposition)
		assert.Nil(t, res.Alert)
		assert.Equal(t, want, res.DuplicateCount)
	}

	assert.Len(t, engine.GetAlerts(models.AlertQuery{}), 1)
}

func TestCreateAlertSuppressed(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	require.NoError(t, engine.AddSuppressionRule(&models.SuppressionRule{
		Name:    "mute sync",
		Enabled: true,
		Conditions: []models.SuppressionCondition{
			{Field: "source", Operator: models.OpEquals, Value: "sync"},
		},
		DurationMs: 60000,
		Reason:     "maintenance",
	}))

	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)
	assert.Equal(t, DispositionSuppressed, res.Disposition)
	assert.Nil(t, res.Alert)
	assert.Equal(t, "maintenance", res.Reason)
	assert.NotEmpty(t, res.RuleID)
	assert.Empty(t, engine.GetAlerts(models.AlertQuery{}))
}

func TestEscalationEndToEnd(t *testing.T) {
	engine, clock, notifier := newTestEngine(t)

	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)
	alertID := res.Alert.ID

	// Level 1 at +5m: email + webhook, status still active.
	clock.Advance(5 * time.Minute)
	alert := engine.GetAlert(alertID)
	require.NotNil(t, alert)
	assert.Equal(t, 1, alert.EscalationLevel)
	require.Len(t, alert.EscalationHistory, 1)
	assert.ElementsMatch(t, []string{"email", "webhook"}, alert.EscalationHistory[0].Channels)
	assert.Equal(t, models.StatusActive, alert.Status)
	assert.Len(t, alert.NotificationHistory, 2)

	// Level 2 fires 10m after level 1 and flips the alert to escalated.
	clock.Advance(10 * time.Minute)
	alert = engine.GetAlert(alertID)
	assert.Equal(t, 2, alert.EscalationLevel)
	assert.Equal(t, models.StatusEscalated, alert.Status)
	require.Len(t, alert.EscalationHistory, 2)

	// Level 3 fires 15m after level 2 and is the end of the chain.
	clock.Advance(15 * time.Minute)
	alert = engine.GetAlert(alertID)
	assert.Equal(t, 3, alert.EscalationLevel)
	require.Len(t, alert.EscalationHistory, 3)

	clock.Advance(24 * time.Hour)
	alert = engine.GetAlert(alertID)
	assert.Len(t, alert.EscalationHistory, 3, "timer fired past the last level")
	assert.Equal(t, 3, notifier.callCount())
}

func TestAcknowledgeCancelsEscalation(t *testing.T) {
	engine, clock, notifier := newTestEngine(t)

	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)
	alertID := res.Alert.ID

	clock.Advance(2 * time.Minute)
	acked := engine.AcknowledgeAlert(alertID, "noc")
	require.NotNil(t, acked)
	assert.Equal(t, models.StatusAcknowledged, acked.Status)
	assert.Equal(t, "noc", acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)

	clock.Advance(30 * time.Minute)
	alert := engine.GetAlert(alertID)
	assert.Empty(t, alert.EscalationHistory, "escalation fired after acknowledge")
	assert.Equal(t, 0, notifier.callCount())
}

func TestAcknowledgeAfterEscalation(t *testing.T) {
	engine, clock, _ := newTestEngine(t)

	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)
	alertID := res.Alert.ID

	clock.Advance(15 * time.Minute) // levels 1 and 2
	alert := engine.GetAlert(alertID)
	require.Equal(t, models.StatusEscalated, alert.Status)

	acked := engine.AcknowledgeAlert(alertID, "noc")
	require.NotNil(t, acked)
	assert.Equal(t, models.StatusAcknowledged, acked.Status)

	clock.Advance(time.Hour)
	alert = engine.GetAlert(alertID)
	assert.Len(t, alert.EscalationHistory, 2, "level fired after acknowledge")
	assert.Equal(t, 2, alert.EscalationLevel, "escalation level changed after acknowledge")
}

func TestResolveIsTerminalAndIdempotent(t *testing.T) {
	engine, clock, _ := newTestEngine(t)

	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)
	alertID := res.Alert.ID

	clock.Advance(time.Minute)
	resolved := engine.ResolveAlert(alertID, "noc")
	require.NotNil(t, resolved)
	assert.Equal(t, models.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	// Second resolve is a no-op returning the already-resolved alert.
	again := engine.ResolveAlert(alertID, "someone-else")
	require.NotNil(t, again)
	assert.Equal(t, models.StatusResolved, again.Status)
	assert.Equal(t, "noc", again.ResolvedBy)

	// Acknowledge after resolve does not transition out of terminal state.
	acked := engine.AcknowledgeAlert(alertID, "noc")
	require.NotNil(t, acked)
	assert.Equal(t, models.StatusResolved, acked.Status)

	clock.Advance(time.Hour)
	alert := engine.GetAlert(alertID)
	assert.Empty(t, alert.EscalationHistory)
}

func TestOperationsOnUnknownAlert(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	assert.Nil(t, engine.GetAlert("nope"))
	assert.Nil(t, engine.AcknowledgeAlert("nope", "noc"))
	assert.Nil(t, engine.ResolveAlert("nope", "noc"))
	assert.False(t, engine.RecordNotification("nope", models.NotificationRecord{Channel: "email"}))
}

func TestGetAlertsFiltersAndOrder(t *testing.T) {
	engine, clock, _ := newTestEngine(t)

	mk := func(source, symbol, title string, sev models.Severity) string {
		res, err := engine.CreateAlert(models.AlertCandidate{
			Source: source, Symbol: symbol, Severity: sev, Title: title,
		})
		require.NoError(t, err)
		clock.Advance(time.Second)
		return res.Alert.ID
	}

	a := mk("sync", "ETH/USD", "lag", models.SeverityHigh)
	b := mk("price", "BTC/USD", "deviation", models.SeverityCritical)
	c := mk("health", "", "probe failed", models.SeverityLow)

	all := engine.GetAlerts(models.AlertQuery{})
	require.Len(t, all, 3)
	assert.Equal(t, c, all[0].ID, "newest first")
	assert.Equal(t, b, all[1].ID)
	assert.Equal(t, a, all[2].ID)

	bySource := engine.GetAlerts(models.AlertQuery{Source: "price"})
	require.Len(t, bySource, 1)
	assert.Equal(t, b, bySource[0].ID)

	bySeverity := engine.GetAlerts(models.AlertQuery{Severity: models.SeverityLow})
	require.Len(t, bySeverity, 1)
	assert.Equal(t, c, bySeverity[0].ID)

	engine.ResolveAlert(a, "noc")
	byStatus := engine.GetAlerts(models.AlertQuery{Status: models.StatusResolved})
	require.Len(t, byStatus, 1)
	assert.Equal(t, a, byStatus[0].ID)

	limited := engine.GetAlerts(models.AlertQuery{Limit: 2})
	assert.Len(t, limited, 2)
}

func TestStats(t *testing.T) {
	engine, clock, _ := newTestEngine(t)

	// Empty engine: everything zero, no NaN.
	stats := engine.Stats()
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.SuppressionRate)
	assert.Zero(t, stats.EscalationRate)
	assert.Zero(t, stats.AverageResolutionTimeMs)

	resA, err := engine.CreateAlert(models.AlertCandidate{Source: "sync", Severity: models.SeverityHigh, Title: "a"})
	require.NoError(t, err)
	resB, err := engine.CreateAlert(models.AlertCandidate{Source: "price", Severity: models.SeverityLow, Title: "b"})
	require.NoError(t, err)

	// Resolve A after 2 minutes, B after 4: mean resolution 3 minutes.
	clock.Advance(2 * time.Minute)
	engine.ResolveAlert(resA.Alert.ID, "noc")
	clock.Advance(2 * time.Minute)
	engine.ResolveAlert(resB.Alert.ID, "noc")

	stats = engine.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.BySeverity[models.SeverityHigh])
	assert.Equal(t, 1, stats.BySeverity[models.SeverityLow])
	assert.Equal(t, 2, stats.ByStatus[models.StatusResolved])
	assert.InDelta(t, float64((3 * time.Minute).Milliseconds()), stats.AverageResolutionTimeMs, 0.001)
	assert.Zero(t, stats.EscalationRate)
}

func TestStatsRates(t *testing.T) {
	engine, clock, _ := newTestEngine(t)

	require.NoError(t, engine.AddSuppressionRule(&models.SuppressionRule{
		Name:    "mute health",
		Enabled: true,
		Conditions: []models.SuppressionCondition{
			{Field: "source", Operator: models.OpEquals, Value: "health"},
		},
		DurationMs: 60000,
	}))

	_, err := engine.CreateAlert(models.AlertCandidate{Source: "sync", Severity: models.SeverityHigh, Title: "a"})
	require.NoError(t, err)
	_, err = engine.CreateAlert(models.AlertCandidate{Source: "health", Severity: models.SeverityLow, Title: "b"})
	require.NoError(t, err)

	clock.Advance(5 * time.Minute) // escalate the surviving alert to level 1

	stats := engine.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.InDelta(t, 0.5, stats.SuppressionRate, 0.001)
	assert.InDelta(t, 1.0, stats.EscalationRate, 0.001)
}

func TestNotificationOutcomesRecorded(t *testing.T) {
	engine, clock, notifier := newTestEngine(t)
	notifier.fail = true

	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	alert := engine.GetAlert(res.Alert.ID)
	require.Len(t, alert.NotificationHistory, 2)
	for _, rec := range alert.NotificationHistory {
		assert.Equal(t, models.NotificationFailed, rec.Outcome)
		assert.NotEmpty(t, rec.Error)
		assert.False(t, rec.Timestamp.IsZero())
	}

	// The failed delivery did not roll the escalation back.
	assert.Equal(t, 1, alert.EscalationLevel)
	require.Len(t, alert.EscalationHistory, 1)
}

func TestRecordNotificationOutOfBand(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)

	ok := engine.RecordNotification(res.Alert.ID, models.NotificationRecord{
		Channel: "webhook",
		Outcome: models.NotificationRetrying,
	})
	require.True(t, ok)

	alert := engine.GetAlert(res.Alert.ID)
	require.Len(t, alert.NotificationHistory, 1)
	assert.Equal(t, models.NotificationRetrying, alert.NotificationHistory[0].Outcome)
	assert.False(t, alert.NotificationHistory[0].Timestamp.IsZero())
}

func TestCustomPolicySelection(t *testing.T) {
	clock := newFakeClock(time.Unix(1700000000, 0))
	notifier := &captureNotifier{}
	engine := NewEngine(Config{Clock: clock, OnEscalate: notifier.onEscalate}, logger.NewNop())
	defer engine.Close()

	fast := &models.EscalationPolicy{
		ID:   "fast",
		Name: "fast page",
		Levels: []models.EscalationLevel{
			{Level: 1, TimeoutMs: (30 * time.Second).Milliseconds(), Channels: []string{"pagerduty"}, NotifyOnEscalation: true},
		},
	}
	require.NoError(t, engine.AddEscalationPolicy(fast))

	policies := engine.EscalationPolicies()
	assert.Len(t, policies, 2, "default plus custom")

	got, ok := engine.EscalationPolicy("fast")
	require.True(t, ok)
	assert.Equal(t, "fast page", got.Name)
}

func TestCleanupSweepRuns(t *testing.T) {
	engine, clock, _ := newTestEngine(t)
	engine.Start()

	_, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)

	// After the dedup window plus a sweep cycle the same candidate is a
	// fresh occurrence again (its alert is deduplicated against nothing).
	clock.Advance(3 * time.Hour)
	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)
	assert.Equal(t, DispositionCreated, res.Disposition)
}

func TestConcurrentAcknowledgeAndTimerFire(t *testing.T) {
	// Ordering guard: once acknowledge is recorded, the chain must not fire
	// further levels even if a timer was already in flight.
	engine, clock, notifier := newTestEngine(t)

	res, err := engine.CreateAlert(syncCandidate())
	require.NoError(t, err)
	alertID := res.Alert.ID

	clock.Advance(5 * time.Minute) // level 1 fires
	require.Equal(t, 1, notifier.callCount())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.AcknowledgeAlert(alertID, "noc")
	}()
	go func() {
		defer wg.Done()
		clock.Advance(10 * time.Minute)
	}()
	wg.Wait()

	alert := engine.GetAlert(alertID)
	if alert.Status == models.StatusAcknowledged {
		// Acknowledge won: no level-2 record may exist afterwards.
		clock.Advance(time.Hour)
		final := engine.GetAlert(alertID)
		assert.LessOrEqual(t, len(final.EscalationHistory), 2)
		assert.Equal(t, models.StatusAcknowledged, final.Status)
	}
}
