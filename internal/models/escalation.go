package models

// EscalationLevel is one step in a policy's timer chain. TimeoutMs counts
// from entry into the level, not from alert creation.
type EscalationLevel struct {
	Level                 int      `json:"level" yaml:"level"`
	Name                  string   `json:"name" yaml:"name"`
	TimeoutMs             int64    `json:"timeout_ms" yaml:"timeout_ms"`
	Channels              []string `json:"channels" yaml:"channels"`
	RequireAcknowledgment bool     `json:"require_acknowledgment" yaml:"require_acknowledgment"`
	AutoEscalate          bool     `json:"auto_escalate" yaml:"auto_escalate"`
	NotifyOnEscalation    bool     `json:"notify_on_escalation" yaml:"notify_on_escalation"`
}

// EscalationPolicy is an ordered chain of levels. Read-only once alerts are
// escalating under it.
type EscalationPolicy struct {
	ID              string            `json:"id" yaml:"id"`
	Name            string            `json:"name" yaml:"name"`
	Levels          []EscalationLevel `json:"levels" yaml:"levels"`
	DefaultChannels []string          `json:"default_channels" yaml:"default_channels"`
}

// DefaultPolicyID is the named slot used when a candidate does not select a
// policy explicitly.
const DefaultPolicyID = "default"
