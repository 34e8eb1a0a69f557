package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oraclewatch/core/internal/metrics"
	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

// Valkey is the shared cache used for rate-limit counters and read-path
// snapshots. The engine itself never depends on it; losing the cache degrades
// latency, not correctness.
type Valkey interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error

	// Alert snapshot caching for dashboard reads
	CacheAlertSnapshot(ctx context.Context, alert *models.Alert, ttl time.Duration) error
	GetCachedAlertSnapshot(ctx context.Context, alertID string) (*models.Alert, error)

	// Stats caching to keep the stats endpoint cheap under polling
	CacheStats(ctx context.Context, stats *models.AlertStats, ttl time.Duration) error
	GetCachedStats(ctx context.Context) (*models.AlertStats, error)
}

type valkeyImpl struct {
	client redis.UniversalClient
	logger logger.Logger
	ttl    time.Duration
}

// NewValkey connects to the configured Valkey nodes. A single node gets a
// plain client, multiple nodes a cluster client (handled by UniversalClient).
func NewValkey(nodes []string, defaultTTL time.Duration, log logger.Logger) (Valkey, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        nodes,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &valkeyImpl{client: client, logger: log, ttl: defaultTTL}, nil
}

func (v *valkeyImpl) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := v.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.CacheRequestsTotal.WithLabelValues("get", "miss").Inc()
			return nil, fmt.Errorf("key not found: %s", key)
		}
		metrics.CacheRequestsTotal.WithLabelValues("get", "error").Inc()
		return nil, err
	}
	metrics.CacheRequestsTotal.WithLabelValues("get", "hit").Inc()
	return data, nil
}

func (v *valkeyImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := marshalValue(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, b, ttl).Err(); err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("set", "error").Inc()
		return err
	}
	metrics.CacheRequestsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

// Increment bumps a counter key, arming its TTL on first use. Used by the
// rate limiter's fixed windows.
func (v *valkeyImpl) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := v.client.Incr(ctx, key).Result()
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("incr", "error").Inc()
		return 0, err
	}
	if count == 1 && ttl > 0 {
		v.client.Expire(ctx, key, ttl)
	}
	metrics.CacheRequestsTotal.WithLabelValues("incr", "ok").Inc()
	return count, nil
}

func (v *valkeyImpl) Delete(ctx context.Context, key string) error {
	return v.client.Del(ctx, key).Err()
}

func (v *valkeyImpl) CacheAlertSnapshot(ctx context.Context, alert *models.Alert, ttl time.Duration) error {
	return v.Set(ctx, alertSnapshotKey(alert.ID), alert, ttl)
}

func (v *valkeyImpl) GetCachedAlertSnapshot(ctx context.Context, alertID string) (*models.Alert, error) {
	data, err := v.Get(ctx, alertSnapshotKey(alertID))
	if err != nil {
		return nil, err
	}
	var alert models.Alert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached alert: %w", err)
	}
	return &alert, nil
}

func (v *valkeyImpl) CacheStats(ctx context.Context, stats *models.AlertStats, ttl time.Duration) error {
	return v.Set(ctx, statsKey, stats, ttl)
}

func (v *valkeyImpl) GetCachedStats(ctx context.Context) (*models.AlertStats, error) {
	data, err := v.Get(ctx, statsKey)
	if err != nil {
		return nil, err
	}
	var stats models.AlertStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached stats: %w", err)
	}
	return &stats, nil
}

const statsKey = "alerts:stats"

func alertSnapshotKey(id string) string { return "alerts:snapshot:" + id }

func marshalValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
