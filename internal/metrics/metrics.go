package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "zipsync"

// Collector is a prometheus.Collector for pipeline metrics. All recording
// methods are safe on a nil *Collector.
type Collector struct {
	tasksProcessed  *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	sourceFetches   *prometheus.CounterVec
	recordsParsed   *prometheus.GaugeVec
	mergedEntries   prometheus.Gauge
	shardsPublished *prometheus.CounterVec
	reports         *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		tasksProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tasks_processed_total",
				Help:      "The number of tasks processed by workers.",
			}, []string{"task_type", "outcome"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "task_duration_seconds",
				Help:      "The time taken to process a task.",
				Buckets:   []float64{0.1, 1, 5, 15, 60, 180, 600},
			}, []string{"task_type"},
		),
		sourceFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "source_fetches_total",
				Help:      "The number of upstream downloads.",
			}, []string{"source_type", "resource"},
		),
		recordsParsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "records_parsed",
				Help:      "The number of address records in the last parse of a source.",
			}, []string{"source_type"},
		),
		mergedEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "merged_entries",
				Help:      "The number of postal codes in the last merge.",
			},
		),
		shardsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "shards_published_total",
				Help:      "The number of shard publications, by prefix.",
			}, []string{"prefix"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "status_reports_total",
				Help:      "The number of status reports composed.",
			}, []string{"status"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.tasksProcessed.Describe(ch)
	c.taskDuration.Describe(ch)
	c.sourceFetches.Describe(ch)
	c.recordsParsed.Describe(ch)
	c.mergedEntries.Describe(ch)
	c.shardsPublished.Describe(ch)
	c.reports.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.tasksProcessed.Collect(ch)
	c.taskDuration.Collect(ch)
	c.sourceFetches.Collect(ch)
	c.recordsParsed.Collect(ch)
	c.mergedEntries.Collect(ch)
	c.shardsPublished.Collect(ch)
	c.reports.Collect(ch)
}

// TaskProcessed records one task outcome ("completed", "retried", "failed").
func (c *Collector) TaskProcessed(taskType, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.tasksProcessed.WithLabelValues(taskType, outcome).Inc()
	c.taskDuration.WithLabelValues(taskType).Observe(d.Seconds())
}

// SourceFetched records a download of a page or archive.
func (c *Collector) SourceFetched(sourceType, resource string) {
	if c == nil {
		return
	}
	c.sourceFetches.WithLabelValues(sourceType, resource).Inc()
}

// RecordsParsed records the record count of a parsed source.
func (c *Collector) RecordsParsed(sourceType string, n int) {
	if c == nil {
		return
	}
	c.recordsParsed.WithLabelValues(sourceType).Set(float64(n))
}

// Merged records the entry count of a merge.
func (c *Collector) Merged(n int) {
	if c == nil {
		return
	}
	c.mergedEntries.Set(float64(n))
}

// ShardPublished records a shard publication.
func (c *Collector) ShardPublished(prefix string) {
	if c == nil {
		return
	}
	c.shardsPublished.WithLabelValues(prefix).Inc()
}

// Reported records a composed status report.
func (c *Collector) Reported(status string) {
	if c == nil {
		return
	}
	c.reports.WithLabelValues(status).Inc()
}
