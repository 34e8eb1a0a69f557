package models

import "time"

// ConditionOperator is the comparison applied by a suppression condition.
type ConditionOperator string

const (
	OpEquals   ConditionOperator = "equals"
	OpContains ConditionOperator = "contains"
	OpIn       ConditionOperator = "in"
	OpGt       ConditionOperator = "gt"
	OpLt       ConditionOperator = "lt"
)

func (o ConditionOperator) Valid() bool {
	switch o {
	case OpEquals, OpContains, OpIn, OpGt, OpLt:
		return true
	}
	return false
}

// SuppressionCondition is a leaf predicate against a candidate alert. Field is
// a dotted path ("source", "metadata.chain"); a path that does not resolve
// never matches.
type SuppressionCondition struct {
	Field    string            `json:"field" yaml:"field"`
	Operator ConditionOperator `json:"operator" yaml:"operator"`
	Value    interface{}       `json:"value" yaml:"value"`
}

// SuppressionRule drops matching candidates for DurationMs. All conditions
// must hold for the rule to match.
type SuppressionRule struct {
	ID         string                 `json:"id" yaml:"id"`
	Name       string                 `json:"name" yaml:"name"`
	Enabled    bool                   `json:"enabled" yaml:"enabled"`
	Conditions []SuppressionCondition `json:"conditions" yaml:"conditions"`
	DurationMs int64                  `json:"duration_ms" yaml:"duration_ms"`
	Reason     string                 `json:"reason" yaml:"reason"`
	CreatedAt  time.Time              `json:"created_at" yaml:"-"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// SuppressionDecision is the outcome of evaluating a candidate against the
// registered rules.
type SuppressionDecision struct {
	Suppressed bool   `json:"suppressed"`
	RuleID     string `json:"rule_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
