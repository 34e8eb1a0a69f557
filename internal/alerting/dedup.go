package alerting

import (
	"strings"
	"sync"
	"time"

	"github.com/oraclewatch/core/internal/models"
)

// DedupKey derives the identity under which repeated signals collapse.
func DedupKey(c models.AlertCandidate) string {
	return strings.Join([]string{c.Source, c.Symbol, string(c.Severity), c.Title}, "|")
}

// SuppressionKey derives the identity used by the suppression log.
func SuppressionKey(c models.AlertCandidate) string {
	return strings.Join([]string{c.Source, c.Symbol, string(c.Severity)}, "|")
}

type dedupRecord struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// DedupResult reports whether a candidate repeats an already-seen signal.
type DedupResult struct {
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Count       int    `json:"count"`
}

// Deduplicator collapses identical signals seen within a rolling window into
// a single logical occurrence with a running count.
type Deduplicator struct {
	clock  Clock
	window time.Duration

	mu      sync.Mutex
	records map[string]*dedupRecord
}

func NewDeduplicator(window time.Duration, clock Clock) *Deduplicator {
	return &Deduplicator{
		clock:   clock,
		window:  window,
		records: make(map[string]*dedupRecord),
	}
}

// Check records the candidate and reports whether it duplicates a signal first
// seen within the window. A record whose window has lapsed is replaced by a
// fresh one, so the next identical signal starts a new occurrence.
func (d *Deduplicator) Check(c models.AlertCandidate) DedupResult {
	key := DedupKey(c)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.records[key]; ok && now.Sub(rec.firstSeen) < d.window {
		rec.count++
		rec.lastSeen = now
		return DedupResult{IsDuplicate: true, DuplicateOf: key, Count: rec.count}
	}

	d.records[key] = &dedupRecord{count: 1, firstSeen: now, lastSeen: now}
	return DedupResult{Count: 1}
}

// Cleanup drops records not seen within the window. It is meant to run on a
// periodic trigger, not per call.
func (d *Deduplicator) Cleanup() int {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, rec := range d.records {
		if now.Sub(rec.lastSeen) > d.window {
			delete(d.records, key)
			removed++
		}
	}
	return removed
}
