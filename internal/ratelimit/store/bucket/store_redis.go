package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"registrar/internal/ratelimit/models"
)

const keyPrefix = "registrar:ratelimit:"

// RedisBucketStore implements the sliding window with one sorted set per key, scored
// by request time in microseconds.
type RedisBucketStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisBucketStore(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// Allow adds the request to the window and counts it in one MULTI block; a request
// that lands over the limit is removed again so rejected attempts do not extend the window.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	redisKey := keyPrefix + key
	member := uuid.NewString()

	var (
		count  *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(now.Add(-window).UnixMicro(), 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		count = pipe.ZCard(ctx, redisKey)
		oldest = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		pipe.PExpire(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update rate limit window: %w", err)
	}

	resetAt := now.Add(window)
	if first := oldest.Val(); len(first) > 0 {
		resetAt = time.UnixMicro(int64(first[0].Score)).Add(window)
	}
	used := int(count.Val())
	if used > limit {
		if err := s.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return nil, fmt.Errorf("discard rejected hit: %w", err)
		}
		return &models.Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}, nil
	}
	return &models.Result{Allowed: true, Limit: limit, Remaining: limit - used, ResetAt: resetAt}, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset rate limit window: %w", err)
	}
	return nil
}
