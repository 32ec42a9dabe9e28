package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOptions(t *testing.T) {
	t.Run("overrides pool and timeouts", func(t *testing.T) {
		opts, err := options(config.RedisConfig{
			URL:          "redis://localhost:6379/2",
			PoolSize:     7,
			MinIdleConns: 2,
			ReadTimeout:  time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "localhost:6379", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 7, opts.PoolSize)
		assert.Equal(t, 2, opts.MinIdleConns)
		assert.Equal(t, time.Second, opts.ReadTimeout)
	})

	t.Run("rejects malformed urls", func(t *testing.T) {
		_, err := options(config.RedisConfig{URL: "http://localhost"})
		assert.Error(t, err)
	})
}
