package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	reportCachePrefix    = "hostel:report:"
	reportCacheScanCount = 100
)

// ReportCache stores rendered report bodies between writes.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
	Invalidate(ctx context.Context) error
}

// RedisReportCache keeps report bodies in redis under a shared prefix with a TTL.
type RedisReportCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisReportCache returns a cache over client. Entries expire after ttl.
func NewRedisReportCache(client redis.UniversalClient, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{client: client, ttl: ttl}
}

func (cache *RedisReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := cache.client.Get(ctx, reportCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("report cache get: %w", err)
	}
	return body, true, nil
}

func (cache *RedisReportCache) Set(ctx context.Context, key string, body []byte) error {
	if err := cache.client.Set(ctx, reportCachePrefix+key, body, cache.ttl).Err(); err != nil {
		return fmt.Errorf("report cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached report.
func (cache *RedisReportCache) Invalidate(ctx context.Context) error {
	iterator := cache.client.Scan(ctx, 0, reportCachePrefix+"*", reportCacheScanCount).Iterator()
	keys := make([]string, 0, 16)
	for iterator.Next(ctx) {
		keys = append(keys, iterator.Val())
	}
	if err := iterator.Err(); err != nil {
		return fmt.Errorf("report cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := cache.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("report cache delete: %w", err)
	}
	return nil
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// GuardedReportCache fronts a ReportCache for the HTTP layer and the engine. It is a
// housing.OperationLogger: every successful mutation bumps the generation and clears
// the cache, and a report computed across a bump is not written back.
type GuardedReportCache struct {
	cache      ReportCache
	logger     *zap.Logger
	mutex      sync.Mutex
	generation uint64
}

// NewGuardedReportCache wraps cache. A nil cache stores nothing.
func NewGuardedReportCache(cache ReportCache, logger *zap.Logger) *GuardedReportCache {
	if cache == nil {
		cache = noopReportCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardedReportCache{cache: cache, logger: logger}
}

func (guarded *GuardedReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return guarded.cache.Get(ctx, key)
}

// Generation returns the current invalidation count.
func (guarded *GuardedReportCache) Generation() uint64 {
	guarded.mutex.Lock()
	defer guarded.mutex.Unlock()
	return guarded.generation
}

// SetIfCurrent stores body unless the cache was invalidated after generation was read.
// It reports whether body was stored.
func (guarded *GuardedReportCache) SetIfCurrent(ctx context.Context, key string, body []byte, generation uint64) (bool, error) {
	guarded.mutex.Lock()
	defer guarded.mutex.Unlock()
	if guarded.generation != generation {
		return false, nil
	}
	if err := guarded.cache.Set(ctx, key, body); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate bumps the generation and drops every cached report.
func (guarded *GuardedReportCache) Invalidate(ctx context.Context) error {
	guarded.mutex.Lock()
	guarded.generation++
	guarded.mutex.Unlock()
	return guarded.cache.Invalidate(ctx)
}

// LogOperation invalidates the cache after a successful engine mutation.
func (guarded *GuardedReportCache) LogOperation(ctx context.Context, entry housing.OperationLog) {
	if entry.Error != nil {
		return
	}
	if err := guarded.Invalidate(context.WithoutCancel(ctx)); err != nil {
		guarded.logger.Warn("report cache invalidation failed",
			zap.String("operation", entry.Operation),
			zap.Int64("booking_id", entry.BookingID.Int64()),
			zap.Error(err),
		)
	}
}

type noopReportCache struct{}

func (noopReportCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noopReportCache) Set(context.Context, string, []byte) error         { return nil }
func (noopReportCache) Invalidate(context.Context) error                  { return nil }
