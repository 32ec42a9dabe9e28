package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.IncrementRegistrations()
	m.IncrementRegistrations()
	m.ObserveLogin("success")
	m.ObserveLogin("invalid_credentials")
	m.ObserveLogin("success")
	m.IncrementLedgerMutation("delete_course")
	m.ObserveStatsCache(true)
	m.ObserveStatsCache(false)
	m.ObserveStatsCache(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerMutations.WithLabelValues("delete_course")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatsCacheLookups.WithLabelValues("miss")))
}
