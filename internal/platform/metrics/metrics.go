package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	RequestLatency      *prometheus.HistogramVec
	Registrations       prometheus.Counter
	LoginAttempts       *prometheus.CounterVec
	AuthRejections      *prometheus.CounterVec
	LedgerMutations     *prometheus.CounterVec
	ForcedCourseDeletes prometheus.Counter
	RateLimited         prometheus.Counter
	StatsCacheLookups   *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh registry to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registrar_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_registrations_total",
			Help: "Total number of student accounts registered",
		}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		AuthRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_auth_rejections_total",
			Help: "Requests rejected by the access control gate, by reason",
		}, []string{"reason"}),
		LedgerMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_ledger_mutations_total",
			Help: "Committed enrollment ledger mutations by operation",
		}, []string{"operation"}),
		ForcedCourseDeletes: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_course_forced_deletes_total",
			Help: "Course deletions that unenrolled students via force",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_rate_limited_total",
			Help: "Requests rejected by the auth rate limiter",
		}),
		StatsCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_stats_cache_lookups_total",
			Help: "Course statistics cache lookups by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementRegistrations() {
	m.Registrations.Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementAuthRejection(reason string) {
	m.AuthRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementLedgerMutation(operation string) {
	m.LedgerMutations.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementForcedCourseDelete() {
	m.ForcedCourseDeletes.Inc()
}

func (m *Metrics) IncrementRateLimited() {
	m.RateLimited.Inc()
}

func (m *Metrics) ObserveStatsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StatsCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	m.RequestLatency.WithLabelValues(route, method, status).Observe(seconds)
}
