// Package metrics exposes Prometheus collectors for crawl runs and the API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	postingsTotal              prometheus.Counter
	postingsSkippedTotal       prometheus.Counter
	candidatesTotal            *prometheus.CounterVec
	canonicalSkills            *prometheus.GaugeVec
	cursorCommitsTotal         *prometheus.CounterVec
	pagesTotal                 *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skills_runs_total",
				Help: "Crawl runs, labeled by cursor outcome or failure.",
			},
			[]string{"outcome"},
		)
		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skills_run_duration_seconds",
				Help:    "Wall time of a crawl run.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)
		postingsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "skills_postings_total",
				Help: "Postings emitted by the crawl cursor.",
			},
		)
		postingsSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "skills_postings_skipped_total",
				Help: "Postings dropped for a missing or repeated id.",
			},
		)
		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skills_candidates_total",
				Help: "Candidate terms kept after stopword filtering, labeled by section kind.",
			},
			[]string{"kind"},
		)
		canonicalSkills = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skills_canonical_labels",
				Help: "Canonical skill labels produced by the last run, labeled by section kind.",
			},
			[]string{"kind"},
		)
		cursorCommitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skills_cursor_commits_total",
				Help: "Cursor marker commits, labeled by result.",
			},
			[]string{"result"},
		)
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skills_pages_total",
				Help: "Listing pages fetched, labeled by status.",
			},
			[]string{"status"},
		)
		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skills_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Run summarises one crawl run for ObserveRun.
type Run struct {
	Outcome    string
	Duration   time.Duration
	Pages      int
	Postings   int
	Skipped    int
	Candidates map[string]int
	Skills     map[string]int
}

// ObserveRun records a finished run.
func ObserveRun(r Run) {
	runsTotal.WithLabelValues(r.Outcome).Inc()
	runDurationSeconds.Observe(r.Duration.Seconds())
	pagesTotal.WithLabelValues("ok").Add(float64(r.Pages))
	postingsTotal.Add(float64(r.Postings))
	postingsSkippedTotal.Add(float64(r.Skipped))
	for kind, n := range r.Candidates {
		candidatesTotal.WithLabelValues(kind).Add(float64(n))
	}
	for kind, n := range r.Skills {
		canonicalSkills.WithLabelValues(kind).Set(float64(n))
	}
}

// ObserveFailedRun records a run that aborted.
func ObserveFailedRun(d time.Duration) {
	runsTotal.WithLabelValues("failed").Inc()
	runDurationSeconds.Observe(d.Seconds())
}

// ObserveCursorCommit records a commit attempt. result is committed,
// skipped or failed.
func ObserveCursorCommit(result string) {
	cursorCommitsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
