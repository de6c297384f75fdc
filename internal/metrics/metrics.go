// Package metrics exposes Prometheus collectors for the scoring service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal    *prometheus.CounterVec
	renderPathwayTotal    *prometheus.CounterVec
	scoreCacheTotal       *prometheus.CounterVec
	renderCacheTotal      *prometheus.CounterVec
	escalationsTotal      prometheus.Counter
	finalScoreHistogram   prometheus.Histogram
	scoreDurationSeconds  prometheus.Histogram
	batchLeadOutcomeTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadblitz_fetch_attempts_total",
				Help: "Total static fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		renderPathwayTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadblitz_render_pathway_total",
				Help: "Completed scoring requests, labeled by render pathway.",
			},
			[]string{"pathway"},
		)

		scoreCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadblitz_score_cache_total",
				Help: "Score cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		renderCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadblitz_render_cache_total",
				Help: "Render cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		escalationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadblitz_contact_escalations_total",
				Help: "Second render passes triggered by thin contact evidence.",
			},
		)

		finalScoreHistogram = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadblitz_final_score",
				Help:    "Distribution of final combined scores.",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		scoreDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadblitz_score_duration_seconds",
				Help:    "Wall-clock time of one scoring request.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60},
			},
		)

		batchLeadOutcomeTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadblitz_batch_lead_outcome_total",
				Help: "Batch-scored leads, labeled by outcome.",
			},
			[]string{"outcome"},
		)
	})
}

// ObserveFetchAttempt records one fetch attempt outcome
// (ok, retryable, blocked, garbled, tls_fallback, transport_error).
func ObserveFetchAttempt(outcome string) {
	if fetchAttemptsTotal != nil {
		fetchAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObservePathway records the pathway of a finished scoring request.
func ObservePathway(pathway string) {
	if renderPathwayTotal != nil {
		renderPathwayTotal.WithLabelValues(pathway).Inc()
	}
}

// ObserveScoreCache records a score cache hit, miss, or stale lookup.
func ObserveScoreCache(result string) {
	if scoreCacheTotal != nil {
		scoreCacheTotal.WithLabelValues(result).Inc()
	}
}

// ObserveRenderCache records a render cache hit or miss.
func ObserveRenderCache(result string) {
	if renderCacheTotal != nil {
		renderCacheTotal.WithLabelValues(result).Inc()
	}
}

// ObserveEscalation counts a contact-evidence escalation pass.
func ObserveEscalation() {
	if escalationsTotal != nil {
		escalationsTotal.Inc()
	}
}

// ObserveFinalScore records a combined score and the request duration.
func ObserveFinalScore(score int, duration time.Duration) {
	if finalScoreHistogram != nil {
		finalScoreHistogram.Observe(float64(score))
	}
	if scoreDurationSeconds != nil {
		scoreDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveBatchLead records the outcome of one batch lead
// (scored, failed, timed_out, skipped).
func ObserveBatchLead(outcome string) {
	if batchLeadOutcomeTotal != nil {
		batchLeadOutcomeTotal.WithLabelValues(outcome).Inc()
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
