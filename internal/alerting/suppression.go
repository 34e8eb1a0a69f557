package alerting

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

// SuppressionEngine evaluates administrator-defined rules against incoming
// candidates and drops matches for a bounded duration. Rules are evaluated in
// registration order; all conditions of a rule must hold.
type SuppressionEngine struct {
	clock     Clock
	logger    logger.Logger
	retention time.Duration

	mu    sync.Mutex
	rules []*models.SuppressionRule
	// log records when a suppression key was first suppressed. Throttle
	// semantics: the stamp is kept until its rule window lapses, matches
	// inside the window do not refresh it.
	log map[string]time.Time
}

func NewSuppressionEngine(retention time.Duration, clock Clock, log logger.Logger) *SuppressionEngine {
	return &SuppressionEngine{
		clock:     clock,
		logger:    log,
		retention: retention,
		log:       make(map[string]time.Time),
	}
}

// AddRule validates and registers a rule. Malformed rules are rejected here so
// the evaluation path stays error-free.
func (s *SuppressionEngine) AddRule(rule *models.SuppressionRule) error {
	if rule == nil {
		return fmt.Errorf("suppression rule is nil")
	}
	if rule.Name == "" {
		return fmt.Errorf("suppression rule requires a name")
	}
	if rule.DurationMs <= 0 {
		return fmt.Errorf("suppression rule %q: duration_ms must be positive", rule.Name)
	}
	if len(rule.Conditions) == 0 {
		return fmt.Errorf("suppression rule %q: at least one condition required", rule.Name)
	}
	for i, cond := range rule.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("suppression rule %q: condition %d has empty field", rule.Name, i)
		}
		if !cond.Operator.Valid() {
			return fmt.Errorf("suppression rule %q: condition %d has unknown operator %q", rule.Name, i, cond.Operator)
		}
		switch cond.Operator {
		case models.OpIn:
			if _, ok := asList(cond.Value); !ok {
				return fmt.Errorf("suppression rule %q: condition %d operator 'in' requires a list value", rule.Name, i)
			}
		case models.OpGt, models.OpLt:
			if _, ok := asFloat(cond.Value); !ok {
				return fmt.Errorf("suppression rule %q: condition %d operator %q requires a numeric value", rule.Name, i, cond.Operator)
			}
		}
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = s.clock.Now()

	s.mu.Lock()
	s.rules = append(s.rules, rule)
	s.mu.Unlock()

	s.logger.Info("Suppression rule registered", "ruleId", rule.ID, "name", rule.Name, "conditions", len(rule.Conditions))
	return nil
}

func (s *SuppressionEngine) RemoveRule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rule := range s.rules {
		if rule.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return true
		}
	}
	return false
}

// SetRuleEnabled toggles a rule in place. Enabled is the only field mutated
// after registration.
func (s *SuppressionEngine) SetRuleEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rule := range s.rules {
		if rule.ID == id {
			rule.Enabled = enabled
			return true
		}
	}
	return false
}

func (s *SuppressionEngine) Rules() []*models.SuppressionRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.SuppressionRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// ShouldSuppress evaluates the candidate against enabled, non-expired rules
// and, on the first match, records the suppression in the log. Every candidate
// matching an active rule is suppressed; the log exists for bookkeeping and
// future rate features, not as a pass-through gate.
func (s *SuppressionEngine) ShouldSuppress(c models.AlertCandidate) models.SuppressionDecision {
	now := s.clock.Now()
	fields := candidateFields(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rule := range s.rules {
		if !rule.Enabled {
			continue
		}
		if rule.ExpiresAt != nil && now.After(*rule.ExpiresAt) {
			continue
		}
		if !ruleMatches(rule, fields) {
			continue
		}

		key := SuppressionKey(c)
		window := time.Duration(rule.DurationMs) * time.Millisecond
		if last, ok := s.log[key]; !ok || now.Sub(last) >= window {
			s.log[key] = now
		}
		return models.SuppressionDecision{Suppressed: true, RuleID: rule.ID, Reason: rule.Reason}
	}

	return models.SuppressionDecision{}
}

// CleanupExpired sweeps suppression-log entries older than the retention
// period.
func (s *SuppressionEngine) CleanupExpired() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, stamp := range s.log {
		if now.Sub(stamp) > s.retention {
			delete(s.log, key)
			removed++
		}
	}
	return removed
}

func ruleMatches(rule *models.SuppressionRule, fields map[string]interface{}) bool {
	for _, cond := range rule.Conditions {
		value, ok := fields[cond.Field]
		if !ok {
			// Unknown path never matches.
			return false
		}
		if !conditionHolds(cond, value) {
			return false
		}
	}
	return true
}

func conditionHolds(cond models.SuppressionCondition, value interface{}) bool {
	switch cond.Operator {
	case models.OpEquals:
		return valuesEqual(value, cond.Value)
	case models.OpContains:
		return strings.Contains(asString(value), asString(cond.Value))
	case models.OpIn:
		list, ok := asList(cond.Value)
		if !ok {
			return false
		}
		for _, item := range list {
			if valuesEqual(value, item) {
				return true
			}
		}
		return false
	case models.OpGt:
		a, aok := asFloat(value)
		b, bok := asFloat(cond.Value)
		return aok && bok && a > b
	case models.OpLt:
		a, aok := asFloat(value)
		b, bok := asFloat(cond.Value)
		return aok && bok && a < b
	}
	return false
}

func valuesEqual(a, b interface{}) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return asString(a) == asString(b)
}

// candidateFields flattens a candidate into the dotted key-value view the
// condition paths resolve against.
func candidateFields(c models.AlertCandidate) map[string]interface{} {
	fields := map[string]interface{}{
		"source":      c.Source,
		"symbol":      c.Symbol,
		"severity":    string(c.Severity),
		"title":       c.Title,
		"description": c.Description,
	}
	flattenInto(fields, "metadata", c.Metadata)
	return fields
}

func flattenInto(out map[string]interface{}, prefix string, m map[string]interface{}) {
	for k, v := range m {
		key := prefix + "." + k
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func asList(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
