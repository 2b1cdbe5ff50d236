package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/final-year-project/doubtfire-api/internal/domain"
)

const (
	// DashboardKey holds the cached dashboard series.
	DashboardKey = "helpdesk:stats:dashgraph"
	// GenerationKey is bumped on every invalidation. A series computed under
	// an older generation is never written back.
	GenerationKey = DashboardKey + ":gen"
)

// setIfGeneration writes KEYS[1] only while KEYS[2] still equals ARGV[1].
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// StatsCache keeps the dashboard series in Redis.
type StatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStatsCache builds a cache whose entries expire after ttl.
func NewStatsCache(client redis.Cmdable, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// Get returns the cached series. The bool is false on a miss.
func (c *StatsCache) Get(ctx context.Context) ([]domain.SeriesPoint, bool, error) {
	raw, err := c.client.Get(ctx, DashboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read dashboard cache: %w", err)
	}
	var series []domain.SeriesPoint
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, false, fmt.Errorf("decode dashboard cache: %w", err)
	}
	return series, true, nil
}

// Generation returns the current invalidation generation, zero if none happened yet.
func (c *StatsCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dashboard generation: %w", err)
	}
	return gen, nil
}

// Set stores the series for the configured TTL unless the cache was
// invalidated after generation was read. The bool reports whether it was stored.
func (c *StatsCache) Set(ctx context.Context, generation int64, series []domain.SeriesPoint) (bool, error) {
	raw, err := json.Marshal(series)
	if err != nil {
		return false, fmt.Errorf("encode dashboard cache: %w", err)
	}
	stored, err := setIfGeneration.Run(ctx, c.client,
		[]string{DashboardKey, GenerationKey},
		strconv.FormatInt(generation, 10), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("write dashboard cache: %w", err)
	}
	return stored == 1, nil
}

// Invalidate removes the cached series and bumps the generation so in-flight
// refreshes cannot restore it.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey)
		pipe.Del(ctx, DashboardKey)
		return nil
	})
	return err
}
