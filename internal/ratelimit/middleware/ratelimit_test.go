package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/platform/metrics"
	"registrar/internal/ratelimit/models"
	"registrar/internal/ratelimit/store/bucket"
	"registrar/pkg/platform/middleware/metadata"
	"registrar/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, errors.New("redis down")
}

func request(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test-agent"))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("rejects the request past the limit", func(t *testing.T) {
		m := metrics.NewWithRegisterer(prometheus.NewRegistry())
		mw := New(bucket.NewInMemoryBucketStore(), 2, time.Minute, logger, WithMetrics(m))
		handler := mw.RateLimit(okHandler())

		for range 2 {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, request("192.0.2.1"))
			require.Equal(t, http.StatusOK, rr.Code)
		}

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, request("192.0.2.1"))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "rate_limited", body["error"])
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))

		other := httptest.NewRecorder()
		handler.ServeHTTP(other, request("192.0.2.2"))
		assert.Equal(t, http.StatusOK, other.Code)
	})

	t.Run("store failure fails open", func(t *testing.T) {
		handler := New(failingStore{}, 1, time.Minute, logger).RateLimit(okHandler())
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, request("192.0.2.3"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("disabled passes through", func(t *testing.T) {
		handler := New(bucket.NewInMemoryBucketStore(), 1, time.Minute, logger, WithDisabled(true)).RateLimit(okHandler())
		for range 3 {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, request("192.0.2.4"))
			assert.Equal(t, http.StatusOK, rr.Code)
		}
	})
}

func TestRateLimitKeysOnPeerAddress(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	forwarded := func(remoteAddr, xff string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", xff)
		return req
	}

	t.Run("rotating forwarded header shares one bucket", func(t *testing.T) {
		limiter := New(bucket.NewInMemoryBucketStore(), 1, time.Minute, logger)
		handler := metadata.ClientMetadata(nil)(limiter.RateLimit(okHandler()))

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, forwarded("203.0.113.7:5555", "1.1.1.1"))
		require.Equal(t, http.StatusOK, first.Code)

		second := httptest.NewRecorder()
		handler.ServeHTTP(second, forwarded("203.0.113.7:5555", "2.2.2.2"))
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
	})

	t.Run("clients behind a trusted proxy get their own buckets", func(t *testing.T) {
		trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
		limiter := New(bucket.NewInMemoryBucketStore(), 1, time.Minute, logger)
		handler := metadata.ClientMetadata(trusted)(limiter.RateLimit(okHandler()))

		for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, forwarded("10.0.0.5:443", client))
			assert.Equal(t, http.StatusOK, rr.Code, client)
		}

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, forwarded("10.0.0.5:443", "6.6.6.6, 198.51.100.1"))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})
}
