// Package rulesfile bootstraps suppression rules and escalation policies from
// an optional YAML file and re-applies it on change.
package rulesfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/fswatcher"
	"github.com/oraclewatch/core/pkg/logger"
)

// File is the on-disk shape of the rules bootstrap file.
type File struct {
	SuppressionRules   []*models.SuppressionRule  `yaml:"suppression_rules"`
	EscalationPolicies []*models.EscalationPolicy `yaml:"escalation_policies"`
}

// Registry is the subset of the alert engine the loader configures.
type Registry interface {
	AddSuppressionRule(rule *models.SuppressionRule) error
	RemoveSuppressionRule(id string) bool
	SuppressionRules() []*models.SuppressionRule
	AddEscalationPolicy(policy *models.EscalationPolicy) error
	EscalationPolicy(id string) (*models.EscalationPolicy, bool)
}

// Loader applies a rules file to the engine. Invalid entries are rejected at
// load time and logged; valid entries still apply.
type Loader struct {
	path     string
	registry Registry
	logger   logger.Logger

	// ids of rules this loader registered, so a reload can replace them
	// without touching rules added through the API.
	ownedRules []string
}

func NewLoader(path string, registry Registry, log logger.Logger) *Loader {
	return &Loader{path: path, registry: registry, logger: log}
}

// Load parses the file and registers its contents. Policies already
// registered under the same id are skipped (policies are read-only once
// alerts escalate under them); rules from a previous load are replaced.
func (l *Loader) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	for _, id := range l.ownedRules {
		l.registry.RemoveSuppressionRule(id)
	}
	l.ownedRules = l.ownedRules[:0]

	applied := 0
	for _, rule := range file.SuppressionRules {
		if err := l.registry.AddSuppressionRule(rule); err != nil {
			l.logger.Error("Rejected suppression rule from rules file", "name", rule.Name, "error", err)
			continue
		}
		l.ownedRules = append(l.ownedRules, rule.ID)
		applied++
	}

	for _, policy := range file.EscalationPolicies {
		if _, exists := l.registry.EscalationPolicy(policy.ID); exists {
			l.logger.Debug("Escalation policy already registered, skipping", "policyId", policy.ID)
			continue
		}
		if err := l.registry.AddEscalationPolicy(policy); err != nil {
			l.logger.Error("Rejected escalation policy from rules file", "policyId", policy.ID, "error", err)
			continue
		}
		applied++
	}

	l.logger.Info("Rules file applied", "path", l.path, "entries", applied)
	return nil
}

// Watch re-applies the file whenever it changes, until the context is done.
// Editors that replace the file (rename+create) are handled by re-adding the
// watch on the parent directory.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fswatcher.New()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch rules directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(l.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				l.logger.Info("Rules file changed, reloading", "path", l.path)
				if err := l.Load(); err != nil {
					l.logger.Error("Rules file reload failed", "path", l.path, "error", err)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("Rules watcher error", "error", err)

			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
