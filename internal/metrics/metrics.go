package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelbridge",
			Name:      "pages_classified_total",
			Help:      "Pages classified, labeled by resolved label type",
		},
		[]string{"label_type"},
	)

	outputsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelbridge",
			Name:      "outputs_routed_total",
			Help:      "Composited outputs routed to print queues by queue and result",
		},
		[]string{"queue", "result"},
	)

	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelbridge",
			Name:      "jobs_processed_total",
			Help:      "Print jobs processed by result",
		},
		[]string{"result"},
	)

	pageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labelbridge",
			Name:      "page_stage_duration_seconds",
			Help:      "Per-page stage durations (classify, extract, compose, route)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	rasterDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labelbridge",
			Name:      "raster_duration_seconds",
			Help:      "Duration of document rasterization by input kind",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"kind"},
	)

	cleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "labelbridge",
			Name:      "cleanup_failures_total",
			Help:      "Temporary artifact removals that failed (best-effort housekeeping)",
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "labelbridge",
			Name:      "queue_depth",
			Help:      "Job queue depth gauges for stream and dlq",
		},
		[]string{"type"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(pagesClassified, outputsRouted, jobsProcessed, pageDuration, rasterDuration, cleanupFailures, queueDepth)
}

// Handler returns the http.Handler for /metrics.
func Handler() http.Handler { return promhttp.Handler() }

func PageClassified(labelType string)   { pagesClassified.WithLabelValues(labelType).Inc() }
func OutputRouted(queue, result string) { outputsRouted.WithLabelValues(queue, result).Inc() }
func JobProcessed(result string)        { jobsProcessed.WithLabelValues(result).Inc() }
func IncCleanupFailure()                { cleanupFailures.Inc() }
func SetQueueDepth(kind string, v int64) {
	queueDepth.WithLabelValues(kind).Set(float64(v))
}

func ObserveStage(stage string, d time.Duration) {
	pageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func ObserveRaster(kind string, d time.Duration) {
	rasterDuration.WithLabelValues(kind).Observe(d.Seconds())
}
