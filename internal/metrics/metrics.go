package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "idp_console"

var (
	signIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts by result.",
		},
		[]string{"result"},
	)

	submissionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submissions",
			Name:      "created_total",
			Help:      "Submissions accepted into a form.",
		},
	)

	submissionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submissions",
			Name:      "rejected_total",
			Help:      "Submission attempts refused, by reason.",
		},
		[]string{"reason"},
	)

	formTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forms",
			Name:      "transitions_total",
			Help:      "Form status changes by target status.",
		},
		[]string{"status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		},
		[]string{"method", "route", "status"},
	)
)

func RecordSignIn(result string) {
	signIns.WithLabelValues(result).Inc()
}

func RecordSubmissionCreated() {
	submissionsCreated.Inc()
}

func RecordSubmissionRejected(reason string) {
	submissionsRejected.WithLabelValues(reason).Inc()
}

func RecordFormTransition(status string) {
	formTransitions.WithLabelValues(status).Inc()
}

// ObserveHTTP records one request. route is the chi route pattern, not the raw path,
// to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
