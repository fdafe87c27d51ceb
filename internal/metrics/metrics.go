// Package metrics exposes Prometheus collectors for the mention pipeline and
// the management API.
//
// Label sets are kept bounded: platform names come from the closed platform
// set and the HTTP path label is the registered route template.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// MentionsFetched counts posts returned by platform fetches.
	MentionsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentions_fetched_total",
			Help: "Posts returned by platform mention fetches.",
		},
		[]string{"platform"},
	)

	// MentionsInserted counts posts stored for the first time.
	MentionsInserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentions_inserted_total",
			Help: "New mentions persisted to the store.",
		},
		[]string{"platform"},
	)

	// FetchErrors counts failed platform fetches.
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mention_fetch_errors_total",
			Help: "Platform fetches that returned an error.",
		},
		[]string{"platform"},
	)

	// Replies counts reply attempts by outcome ("sent" or "failed").
	Replies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mention_replies_total",
			Help: "Reply attempts by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)

	// TicketsRaised counts tickets created from negative mentions.
	TicketsRaised = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_raised_total",
			Help: "Tickets created for negative mentions.",
		},
	)

	// CycleDuration records autonomous cycle wall time.
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autonomous_cycle_duration_seconds",
			Help:    "Duration of autonomous fetch/reply/ticket cycles.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// RunnerActive is 1 while the autonomous runner is started.
	RunnerActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autonomous_runner_active",
			Help: "1 while the autonomous runner is running.",
		},
	)

	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		MentionsFetched, MentionsInserted, FetchErrors, Replies,
		TicketsRaised, CycleDuration, RunnerActive,
		httpReqs, httpLat, httpInflight,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests routed by a gorilla/mux router. Unmatched
// requests fall back to the raw URL path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}

		httpReqs.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpLat.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
