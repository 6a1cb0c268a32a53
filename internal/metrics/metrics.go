package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbound search API calls.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ted_api_requests_total",
			Help: "Total number of TED search API requests (by status class).",
		},
		[]string{"upstream", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ted_api_request_duration_seconds",
			Help:    "Duration of TED search API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms → ~40s
		},
		[]string{"upstream"},
	)

	// Records pulled per refresh.
	FetchedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ted_fetched_records_total",
			Help: "Lot records returned by the search API.",
		},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tender_pipeline_duration_seconds",
			Help:    "Time spent in each refresh stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"}, // fetch | aggregate | store | publish
	)

	// Latest run composition.
	TendersByUrgency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tenders_by_urgency",
			Help: "Tenders in the latest run by urgency label.",
		},
		[]string{"urgency"},
	)

	TendersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenders_total",
			Help: "Tenders in the latest run.",
		},
	)

	PublishedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_events_published_total",
			Help: "Events published by sink and result.",
		},
		[]string{"sink", "result"}, // result = "ok" | "error"
	)

	PublishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tender_event_publish_latency_seconds",
			Help:    "Time taken to publish one event.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ted_adapter_errors_total",
			Help: "Count of errors by component.",
		},
		[]string{"component", "reason"},
	)

	LastRefreshTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ted_adapter_last_refresh_timestamp",
			Help: "Unix time of the last successful refresh.",
		},
	)
)

// ObserveDuration records time since start on a histogram or summary vec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	d := time.Since(start).Seconds()
	switch m := v.(type) {
	case *prometheus.HistogramVec:
		m.WithLabelValues(labels...).Observe(d)
	case *prometheus.SummaryVec:
		m.WithLabelValues(labels...).Observe(d)
	}
}

func IncUpstreamRequest(upstream, status string) {
	UpstreamRequestsTotal.WithLabelValues(upstream, status).Inc()
}

// AddPublished counts n events delivered to sink with the same result.
func AddPublished(sink, result string, n int) {
	PublishedEvents.WithLabelValues(sink, result).Add(float64(n))
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// SetRunComposition replaces the urgency gauges with the latest counts.
func SetRunComposition(total int, byUrgency map[string]int) {
	TendersTotal.Set(float64(total))
	TendersByUrgency.Reset()
	for label, n := range byUrgency {
		TendersByUrgency.WithLabelValues(label).Set(float64(n))
	}
}

func SetLastRefresh(t time.Time) {
	LastRefreshTimestamp.Set(float64(t.Unix()))
}
