package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the ingestion metrics and the registry they live on.
type Collectors struct {
	Registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	RecordsStored  prometheus.Counter
	RecordsSkipped *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, plus the Go and process collectors.
func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqi_ingestion_runs_total",
			Help: "Total number of ingestion runs by outcome and trigger",
		}, []string{"status", "trigger"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aqi_ingestion_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aqi_records_stored_total",
			Help: "Total number of measurement records persisted",
		}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqi_records_skipped_total",
			Help: "Total number of raw records skipped, by reason",
		}, []string{"reason"}),
	}

	c.Registry.MustRegister(
		c.RunsTotal,
		c.RunDuration,
		c.RecordsStored,
		c.RecordsSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collectors) RunFinished(trigger, status string, elapsed time.Duration) {
	c.RunsTotal.WithLabelValues(status, trigger).Inc()
	c.RunDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

func (c *Collectors) RecordStored() {
	c.RecordsStored.Inc()
}

func (c *Collectors) RecordSkipped(reason string) {
	c.RecordsSkipped.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}
