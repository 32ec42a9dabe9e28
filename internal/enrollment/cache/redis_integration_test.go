//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registrar/internal/enrollment/models"
	id "registrar/pkg/domain"
	"registrar/pkg/testutil/containers"
)

type StatsCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *StatsCache
	ctx   context.Context
}

func TestStatsCacheSuite(t *testing.T) {
	suite.Run(t, new(StatsCacheSuite))
}

func (s *StatsCacheSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = NewStatsCache(s.redis.Client, time.Minute)
}

func (s *StatsCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *StatsCacheSuite) TestRoundTrip() {
	_, version, ok, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.False(ok)

	first := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	stats := []models.CourseStatistics{{
		ID:              id.NewCourseID(),
		Name:            "Algorithms",
		Code:            "CS201",
		Capacity:        40,
		Enrolled:        10,
		Active:          8,
		AverageGPA:      3.25,
		FirstEnrollment: &first,
		UtilizationRate: 25,
	}}
	s.Require().NoError(s.cache.Set(s.ctx, version, stats))

	got, _, ok, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(stats[0].ID, got[0].ID)
	s.Equal(8, got[0].Active)
	s.True(first.Equal(*got[0].FirstEnrollment))

	s.Require().NoError(s.cache.Invalidate(s.ctx))
	_, _, ok, err = s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StatsCacheSuite) TestWriteAfterInvalidateIsDiscarded() {
	_, version, ok, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Require().False(ok)

	// a mutation lands while the report is being computed
	s.Require().NoError(s.cache.Invalidate(s.ctx))
	s.Require().NoError(s.cache.Set(s.ctx, version, []models.CourseStatistics{{Name: "stale"}}))

	_, current, ok, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(version+1, current)
}

func (s *StatsCacheSuite) TestEntriesExpire() {
	short := NewStatsCache(s.redis.Client, time.Second)
	s.Require().NoError(short.Set(s.ctx, 0, []models.CourseStatistics{}))

	ttl, err := s.redis.Client.TTL(s.ctx, dataKey(0)).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
	s.LessOrEqual(ttl, time.Second)
}
