package downloader

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the acquisition engine.
type Metrics struct {
	Registry         *prometheus.Registry
	ImagesTotal      *prometheus.CounterVec
	VariationsTotal  *prometheus.CounterVec
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	VariationSeconds prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	images := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_images_downloaded_total",
			Help: "Total images accepted, by engine.",
		},
		[]string{"engine"},
	)
	variations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_variations_total",
			Help: "Search-term variations processed, by engine and result.",
		},
		[]string{"engine", "result"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_retries_total",
			Help: "Total keyword-level retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "Total acquisition errors by type.",
		},
		[]string{"error_type"},
	)
	variationSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_variation_duration_seconds",
			Help:    "Processing time per search-term variation.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(images, variations, retries, errorsTotal, variationSeconds)

	return &Metrics{
		Registry:         registry,
		ImagesTotal:      images,
		VariationsTotal:  variations,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		VariationSeconds: variationSeconds,
	}
}

// AddImages records accepted images for an engine.
func (m *Metrics) AddImages(engine string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImagesTotal.WithLabelValues(engine).Add(float64(n))
}

// IncVariation records a processed variation outcome.
func (m *Metrics) IncVariation(engine string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.VariationsTotal.WithLabelValues(engine, result).Inc()
}

// IncRetries increments the keyword retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveVariation records a variation's processing time.
func (m *Metrics) ObserveVariation(d time.Duration) {
	if m == nil {
		return
	}
	m.VariationSeconds.Observe(d.Seconds())
}
