package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of completion API requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Completion API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"operation"},
	)
	AIPromptTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_prompt_tokens",
			Help:    "Estimated prompt token counts per completion request",
			Buckets: []float64{64, 128, 256, 512, 1024, 2048, 4096, 8192},
		},
		[]string{"operation"},
	)

	MatchRunsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_runs_enqueued_total",
			Help: "Total number of matching runs enqueued",
		},
	)
	MatchRunsProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "match_runs_processing",
			Help: "Number of matching runs currently processing",
		},
	)
	MatchRunsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_runs_completed_total",
			Help: "Total number of matching runs completed",
		},
	)
	MatchRunsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_runs_failed_total",
			Help: "Total number of matching runs failed",
		},
	)

	TierOneSurvivors = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_tier_one_survivors",
			Help:    "Candidates surviving the lexical filter per run",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 40, 50},
		},
	)
	MatchScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_final_score",
			Help:    "Distribution of final composite match scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
	SemanticFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_semantic_fallback_total",
			Help: "Semantic scoring calls that fell back to neutral scores",
		},
		[]string{"reason"},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors once per process.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			AIPromptTokens,
			MatchRunsEnqueuedTotal,
			MatchRunsProcessing,
			MatchRunsCompletedTotal,
			MatchRunsFailedTotal,
			TierOneSurvivors,
			MatchScoreHistogram,
			SemanticFallbackTotal,
		)
	})
}

// EnqueueRun records a matching run handed to the queue.
func EnqueueRun() { MatchRunsEnqueuedTotal.Inc() }

// StartProcessingRun records a run entering the worker.
func StartProcessingRun() { MatchRunsProcessing.Inc() }

// CompleteRun records a successfully finished run.
func CompleteRun() {
	MatchRunsProcessing.Dec()
	MatchRunsCompletedTotal.Inc()
}

// FailRun records a failed run.
func FailRun() {
	MatchRunsProcessing.Dec()
	MatchRunsFailedTotal.Inc()
}

// SemanticFallback records a semantic tier fallback by reason.
func SemanticFallback(reason string) { SemanticFallbackTotal.WithLabelValues(reason).Inc() }

// ObserveRun records per-run score distributions.
func ObserveRun(tierOneSurvivors int, finalScores []int) {
	TierOneSurvivors.Observe(float64(tierOneSurvivors))
	for _, s := range finalScores {
		MatchScoreHistogram.Observe(float64(s))
	}
}

// HTTPMetricsMiddleware records request counts and latencies per chi route.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
