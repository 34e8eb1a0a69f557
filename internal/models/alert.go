package models

import "time"

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AlertStatus is the lifecycle state of an alert.
// active -> acknowledged | resolved | escalated
// escalated -> acknowledged | resolved
// acknowledged -> resolved; resolved is terminal.
// suppressed is assigned to candidates that never become full alerts.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusSuppressed   AlertStatus = "suppressed"
	StatusEscalated    AlertStatus = "escalated"
)

// NotificationOutcome records what the delivery collaborator reported back.
type NotificationOutcome string

const (
	NotificationSent     NotificationOutcome = "sent"
	NotificationFailed   NotificationOutcome = "failed"
	NotificationRetrying NotificationOutcome = "retrying"
)

// AlertCandidate is what producers (anomaly detectors, health probes, sync
// monitors) submit. It becomes an Alert only after passing dedup and
// suppression checks.
type AlertCandidate struct {
	Source      string                 `json:"source" binding:"required"`
	Symbol      string                 `json:"symbol,omitempty"`
	Severity    Severity               `json:"severity" binding:"required"`
	Title       string                 `json:"title" binding:"required"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type Alert struct {
	ID          string                 `json:"id"`
	Source      string                 `json:"source"`
	Symbol      string                 `json:"symbol,omitempty"`
	Severity    Severity               `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	Status AlertStatus `json:"status"`

	EscalationLevel     int                  `json:"escalation_level"`
	EscalationHistory   []EscalationRecord   `json:"escalation_history"`
	NotificationHistory []NotificationRecord `json:"notification_history"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`

	SuppressionReason string `json:"suppression_reason,omitempty"`
	DuplicateOf       string `json:"duplicate_of,omitempty"`
}

// EscalationRecord is one fired level in an alert's escalation chain.
type EscalationRecord struct {
	Level     int       `json:"level"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Channels  []string  `json:"channels"`
}

// NotificationRecord is one delivery attempt the engine was told about.
type NotificationRecord struct {
	Channel   string              `json:"channel"`
	Timestamp time.Time           `json:"timestamp"`
	Outcome   NotificationOutcome `json:"outcome"`
	Error     string              `json:"error,omitempty"`
}

// AlertQuery filters getAlerts results. Zero values mean "any".
type AlertQuery struct {
	Status   AlertStatus `json:"status,omitempty" form:"status"`
	Severity Severity    `json:"severity,omitempty" form:"severity"`
	Source   string      `json:"source,omitempty" form:"source"`
	Symbol   string      `json:"symbol,omitempty" form:"symbol"`
	Limit    int         `json:"limit,omitempty" form:"limit"`
}

type AlertStats struct {
	Total                   int                 `json:"total"`
	BySeverity              map[Severity]int    `json:"by_severity"`
	ByStatus                map[AlertStatus]int `json:"by_status"`
	AverageResolutionTimeMs float64             `json:"average_resolution_time_ms"`
	SuppressionRate         float64             `json:"suppression_rate"`
	EscalationRate          float64             `json:"escalation_rate"`
}
