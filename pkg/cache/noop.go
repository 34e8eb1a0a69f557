package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

// noopValkey is an in-memory, process-local fallback that satisfies Valkey
// when the external cache is unavailable. Best-effort: entries honor TTL on
// read, data is lost on restart and not shared across replicas.
type noopValkey struct {
	mu     sync.RWMutex
	m      map[string]noopEntry
	logger logger.Logger
}

type noopEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewNoopValkey(log logger.Logger) Valkey {
	log.Warn("Valkey unavailable; using in-memory cache fallback")
	return &noopValkey{m: make(map[string]noopEntry), logger: log}
}

func (n *noopValkey) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	entry, ok := n.m[key]
	n.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return entry.data, nil
}

func (n *noopValkey) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := marshalValue(value)
	if err != nil {
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	n.mu.Lock()
	n.m[key] = noopEntry{data: b, expiresAt: expires}
	n.mu.Unlock()
	return nil
}

func (n *noopValkey) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var count int64
	if entry, ok := n.m[key]; ok && (entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt)) {
		json.Unmarshal(entry.data, &count)
	}
	count++
	b, _ := json.Marshal(count)

	expires := time.Time{}
	if existing, ok := n.m[key]; ok && count > 1 {
		expires = existing.expiresAt
	} else if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	n.m[key] = noopEntry{data: b, expiresAt: expires}
	return count, nil
}

func (n *noopValkey) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}

func (n *noopValkey) CacheAlertSnapshot(ctx context.Context, alert *models.Alert, ttl time.Duration) error {
	return n.Set(ctx, alertSnapshotKey(alert.ID), alert, ttl)
}

func (n *noopValkey) GetCachedAlertSnapshot(ctx context.Context, alertID string) (*models.Alert, error) {
	data, err := n.Get(ctx, alertSnapshotKey(alertID))
	if err != nil {
		return nil, err
	}
	var alert models.Alert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (n *noopValkey) CacheStats(ctx context.Context, stats *models.AlertStats, ttl time.Duration) error {
	return n.Set(ctx, statsKey, stats, ttl)
}

func (n *noopValkey) GetCachedStats(ctx context.Context) (*models.AlertStats, error) {
	data, err := n.Get(ctx, statsKey)
	if err != nil {
		return nil, err
	}
	var stats models.AlertStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
