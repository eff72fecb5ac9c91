// Package metrics provides Prometheus metrics for cutout ingestion
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tesscpm/pkg/tesscpm"
)

// IngestMetrics records cutout loads on its own registry, so a one-shot CLI
// can dump them for the node exporter textfile collector.
type IngestMetrics struct {
	registry *prometheus.Registry

	FramesTotal      *prometheus.CounterVec
	FlaggedTimes     prometheus.Gauge
	DegeneratePixels prometheus.Gauge
	LoadDuration     prometheus.Histogram
}

// NewIngestMetrics creates the ingestion collectors on a fresh registry
func NewIngestMetrics() *IngestMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &IngestMetrics{
		registry: reg,
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tesscpm_frames_total",
				Help: "Cutout frames read, by whether the quality filter kept them",
			},
			[]string{"state"},
		),
		FlaggedTimes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tesscpm_flagged_times",
			Help: "Timestamps with a nonzero QUALITY flag in the last cutout",
		}),
		DegeneratePixels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tesscpm_degenerate_pixels",
			Help: "Pixels of the last cutout whose median is zero or not finite",
		}),
		LoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tesscpm_load_duration_seconds",
			Help:    "Time taken to load and normalize a cutout",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

// Observe records one completed load
func (m *IngestMetrics) Observe(td *tesscpm.TargetData, d time.Duration) {
	m.FramesTotal.WithLabelValues("kept").Add(float64(len(td.Time)))
	m.FramesTotal.WithLabelValues("removed").Add(float64(td.RemovedCount))
	m.FlaggedTimes.Set(float64(len(td.FlaggedTimes)))
	m.DegeneratePixels.Set(float64(len(td.DegeneratePixels)))
	m.LoadDuration.Observe(d.Seconds())
}

func (m *IngestMetrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes every collector in the text exposition format
func (m *IngestMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
