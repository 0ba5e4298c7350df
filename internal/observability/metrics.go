// Package observability registers the service's Prometheus metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/aurashift/internal/model"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aurashift",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aurashift",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	activitiesLogged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aurashift",
		Subsystem: "activities",
		Name:      "logged_total",
		Help:      "Activities created, by type.",
	}, []string{"type"})

	scoreRecalculations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aurashift",
		Subsystem: "scoring",
		Name:      "recalculations_total",
		Help:      "Full aura score recomputations.",
	})

	chartRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aurashift",
		Subsystem: "scoring",
		Name:      "chart_requests_total",
		Help:      "Chart series computed, by time range.",
	}, []string{"time_range"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, activitiesLogged, scoreRecalculations, chartRequests)
}

// RecordRequest observes one finished HTTP request. route should be the
// router pattern, not the raw path, to keep label cardinality bounded.
func RecordRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordActivityLogged(t model.ActivityType) {
	activitiesLogged.WithLabelValues(string(t)).Inc()
}

func RecordScoreRecalculation() {
	scoreRecalculations.Inc()
}

func RecordChartRequest(timeRange string) {
	chartRequests.WithLabelValues(timeRange).Inc()
}
