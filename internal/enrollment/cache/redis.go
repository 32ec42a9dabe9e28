// Package cache keeps the course statistics report in Redis between ledger mutations.
//
// Entries are keyed by a generation counter. Invalidate bumps the counter, so a report
// computed before a mutation and written after it lands under a generation no reader asks for.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"registrar/internal/enrollment/models"
)

const (
	statsKey   = "registrar:course-statistics"
	versionKey = statsKey + ":version"
	defaultTTL = time.Minute
)

// StatsCache stores the serialized statistics report for the current generation.
type StatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStatsCache(client redis.Cmdable, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

func dataKey(version int64) string {
	return fmt.Sprintf("%s:%d", statsKey, version)
}

// Get returns the current generation and its report, if one was stored.
func (c *StatsCache) Get(ctx context.Context) ([]models.CourseStatistics, int64, bool, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("read statistics version: %w", err)
	}

	raw, err := c.client.Get(ctx, dataKey(version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, fmt.Errorf("read statistics: %w", err)
	}
	var stats []models.CourseStatistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, version, false, fmt.Errorf("decode statistics: %w", err)
	}
	return stats, version, true, nil
}

// Set stores stats under the generation observed by the Get that preceded the computation.
func (c *StatsCache) Set(ctx context.Context, version int64, stats []models.CourseStatistics) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}
	if err := c.client.Set(ctx, dataKey(version), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write statistics: %w", err)
	}
	return nil
}

func (c *StatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("invalidate statistics: %w", err)
	}
	return nil
}
