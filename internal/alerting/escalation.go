package alerting

import (
	"fmt"
	"sync"
	"time"

	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

// executeFunc applies one fired escalation level to an alert and reports
// whether the chain should keep going. It is the scheduler's only view into
// alert state; the lifecycle engine supplies it and performs the
// authoritative post-lock status check inside.
type executeFunc func(alertID string, policy *models.EscalationPolicy, levelIdx int) bool

// Scheduler owns escalation policies and the per-alert chain of single-shot
// timers. Levels are chained: each timer is armed only when the previous level
// fires, so for one alert levels fire in order.
type Scheduler struct {
	clock  Clock
	logger logger.Logger
	exec   executeFunc

	mu       sync.RWMutex
	policies map[string]*models.EscalationPolicy

	timersMu sync.Mutex
	timers   map[string]Timer
}

func NewScheduler(clock Clock, log logger.Logger, exec executeFunc) *Scheduler {
	return &Scheduler{
		clock:    clock,
		logger:   log,
		exec:     exec,
		policies: make(map[string]*models.EscalationPolicy),
		timers:   make(map[string]Timer),
	}
}

// AddPolicy validates and registers a policy. Policies are read-only once
// alerts escalate under them.
func (s *Scheduler) AddPolicy(policy *models.EscalationPolicy) error {
	if policy == nil {
		return fmt.Errorf("escalation policy is nil")
	}
	if policy.ID == "" {
		return fmt.Errorf("escalation policy requires an id")
	}
	if len(policy.Levels) == 0 {
		return fmt.Errorf("escalation policy %q: at least one level required", policy.ID)
	}
	for i, level := range policy.Levels {
		if level.TimeoutMs <= 0 {
			return fmt.Errorf("escalation policy %q: level %d timeout_ms must be positive", policy.ID, i)
		}
		if len(level.Channels) == 0 && len(policy.DefaultChannels) == 0 {
			return fmt.Errorf("escalation policy %q: level %d has no channels and no policy defaults", policy.ID, i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[policy.ID]; exists {
		return fmt.Errorf("escalation policy %q already registered", policy.ID)
	}
	s.policies[policy.ID] = policy
	return nil
}

func (s *Scheduler) Policy(id string) (*models.EscalationPolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[id]
	return policy, ok
}

func (s *Scheduler) Policies() []*models.EscalationPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.EscalationPolicy, 0, len(s.policies))
	for _, policy := range s.policies {
		out = append(out, policy)
	}
	return out
}

// Start resolves the policy and arms level 0. An empty policyID selects the
// "default" slot; an unknown id falls back to it with a warning rather than
// dropping the escalation.
func (s *Scheduler) Start(alertID, policyID string) {
	if policyID == "" {
		policyID = models.DefaultPolicyID
	}
	policy, ok := s.Policy(policyID)
	if !ok {
		s.logger.Warn("Unknown escalation policy, using default", "alertId", alertID, "policyId", policyID)
		if policy, ok = s.Policy(models.DefaultPolicyID); !ok {
			s.logger.Error("No default escalation policy registered, alert will not escalate", "alertId", alertID)
			return
		}
	}
	s.armLevel(alertID, policy, 0)
}

// Cancel stops any pending timer for the alert. Safe to call when nothing is
// pending and safe to race an in-flight fire; the engine's status check inside
// the execute callback is the final guard.
func (s *Scheduler) Cancel(alertID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[alertID]; ok {
		timer.Stop()
		delete(s.timers, alertID)
	}
}

func (s *Scheduler) armLevel(alertID string, policy *models.EscalationPolicy, levelIdx int) {
	timeout := time.Duration(policy.Levels[levelIdx].TimeoutMs) * time.Millisecond
	timer := s.clock.AfterFunc(timeout, func() {
		s.fire(alertID, policy, levelIdx)
	})

	s.timersMu.Lock()
	if old, ok := s.timers[alertID]; ok {
		old.Stop()
	}
	s.timers[alertID] = timer
	s.timersMu.Unlock()
}

func (s *Scheduler) fire(alertID string, policy *models.EscalationPolicy, levelIdx int) {
	s.timersMu.Lock()
	delete(s.timers, alertID)
	s.timersMu.Unlock()

	if !s.exec(alertID, policy, levelIdx) {
		return
	}

	level := policy.Levels[levelIdx]
	if level.AutoEscalate && levelIdx+1 < len(policy.Levels) {
		s.armLevel(alertID, policy, levelIdx+1)
	}
}

// PendingTimers reports how many escalation chains are armed.
func (s *Scheduler) PendingTimers() int {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	return len(s.timers)
}
