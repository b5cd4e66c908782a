// Package metrics provides Prometheus metrics for the AI service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the worker and its stages.
type Metrics struct {
	// Photos processed (by result: success, failed)
	PhotosProcessed *prometheus.CounterVec

	// Stage failures (stage: load, faces, tags, ocr, database)
	StageFailures *prometheus.CounterVec

	// Faces detected
	FacesDetected prometheus.Counter

	// Persons created
	PersonsCreated prometheus.Counter

	// Tags assigned
	TagsAssigned prometheus.Counter

	// OCR dates found
	OCRDatesFound prometheus.Counter

	// Per-photo processing duration
	PhotoDuration prometheus.Histogram

	// Queue sizes by status
	QueueSize *prometheus.GaugeVec

	// Worker status (1 = processing, 0 = idle)
	WorkerStatus prometheus.Gauge

	// Resident model count
	ModelsLoaded prometheus.Gauge
}

// New creates all metrics registered against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PhotosProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_photos_processed_total",
			Help: "Total number of photos processed",
		}, []string{"result"}),

		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_stage_failures_total",
			Help: "Total number of per-stage failures",
		}, []string{"stage"}),

		FacesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "ai_faces_detected_total",
			Help: "Total number of faces detected",
		}),

		PersonsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ai_persons_created_total",
			Help: "Total number of new persons created by clustering",
		}),

		TagsAssigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "ai_tags_assigned_total",
			Help: "Total number of tags assigned to photos",
		}),

		OCRDatesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "ai_ocr_dates_found_total",
			Help: "Total number of date stamps recognized",
		}),

		PhotoDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ai_photo_processing_duration_seconds",
			Help:    "Time taken to process one photo",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		QueueSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ai_queue_size",
			Help: "Work queue size by status",
		}, []string{"status"}),

		WorkerStatus: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ai_worker_processing",
			Help: "Worker status (1 = processing, 0 = idle)",
		}),

		ModelsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ai_models_loaded",
			Help: "Number of models resident in memory",
		}),
	}
}

// NewDefault registers against the default Prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// SetQueueStats publishes one gauge per queue status.
func (m *Metrics) SetQueueStats(pending, processing, done, errored int) {
	m.QueueSize.WithLabelValues("pending").Set(float64(pending))
	m.QueueSize.WithLabelValues("processing").Set(float64(processing))
	m.QueueSize.WithLabelValues("done").Set(float64(done))
	m.QueueSize.WithLabelValues("error").Set(float64(errored))
}
