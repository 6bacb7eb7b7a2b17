package collector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a run on a dedicated registry.
type Metrics struct {
	Registry        *prometheus.Registry
	PostsFetched    prometheus.Counter
	PagesExtracted  prometheus.Counter
	CandidatesTotal prometheus.Counter
	ResolvedTotal   prometheus.Counter
	SkipsTotal      *prometheus.CounterVec
	ItemErrorsTotal prometheus.Counter
	RunDuration     prometheus.Histogram
}

// NewMetrics constructs and registers all metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	posts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collector_posts_fetched_total",
		Help: "Blog post URLs returned by the search API.",
	})
	pages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collector_pages_extracted_total",
		Help: "Blog pages successfully fetched and reduced to text.",
	})
	candidates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collector_candidates_total",
		Help: "POI name candidates extracted from page text.",
	})
	resolved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collector_places_resolved_total",
		Help: "Candidates resolved to a place passing all filters.",
	})
	skips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_skips_total",
		Help: "Resolution skips by filter reason.",
	}, []string{"reason"})
	itemErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collector_item_errors_total",
		Help: "Per-item recoverable failures (fetch, resolve, enrich).",
	})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_run_duration_seconds",
		Help:    "Wall-clock duration of complete runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	registry.MustRegister(posts, pages, candidates, resolved, skips, itemErrors, runDuration)

	return &Metrics{
		Registry:        registry,
		PostsFetched:    posts,
		PagesExtracted:  pages,
		CandidatesTotal: candidates,
		ResolvedTotal:   resolved,
		SkipsTotal:      skips,
		ItemErrorsTotal: itemErrors,
		RunDuration:     runDuration,
	}
}

// AddPosts records fetched post URLs.
func (m *Metrics) AddPosts(n int) {
	if m == nil {
		return
	}
	m.PostsFetched.Add(float64(n))
}

// IncPage records one extracted page.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesExtracted.Inc()
}

// AddCandidates records extracted candidates.
func (m *Metrics) AddCandidates(n int) {
	if m == nil {
		return
	}
	m.CandidatesTotal.Add(float64(n))
}

// IncResolved records one resolved place.
func (m *Metrics) IncResolved() {
	if m == nil {
		return
	}
	m.ResolvedTotal.Inc()
}

// IncSkip records one filter rejection.
func (m *Metrics) IncSkip(reason string) {
	if m == nil {
		return
	}
	m.SkipsTotal.WithLabelValues(reason).Inc()
}

// IncItemError records one recoverable per-item failure.
func (m *Metrics) IncItemError() {
	if m == nil {
		return
	}
	m.ItemErrorsTotal.Inc()
}

// ObserveRun records a completed run's duration.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}
