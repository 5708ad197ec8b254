package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	lockAcquire = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookgrid",
			Name:      "lock_acquire_total",
			Help:      "Count of lock acquire attempts by outcome.",
		},
		[]string{"outcome"},
	)

	lockPromoted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookgrid",
			Name:      "lock_promoted_total",
			Help:      "Count of locks promoted to bookings.",
		},
	)

	lockReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookgrid",
			Name:      "lock_released_total",
			Help:      "Count of explicit lock releases.",
		},
	)

	locksReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookgrid",
			Name:      "locks_reaped_total",
			Help:      "Count of expired lock rows removed by the sweeper.",
		},
	)

	gridCompile = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bookgrid",
			Name:      "grid_compile_duration_seconds",
			Help:      "Time to compile an availability grid.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookgrid",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(lockAcquire, lockPromoted, lockReleased, locksReaped, gridCompile, httpRequests)
	})
}

// Acquire outcomes.
const (
	OutcomeGranted   = "granted"
	OutcomeContended = "contended"
	OutcomeRejected  = "rejected"
)

func IncLockAcquire(outcome string) {
	lockAcquire.WithLabelValues(outcome).Inc()
}

func IncLockPromoted() {
	lockPromoted.Inc()
}

func IncLockReleased() {
	lockReleased.Inc()
}

func AddLocksReaped(n int64) {
	locksReaped.Add(float64(n))
}

func ObserveGridCompile(seconds float64) {
	gridCompile.Observe(seconds)
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
