// Package metrics exposes plugin activity as Prometheus metrics.
//
// Collector implements persist.Logger, so it is attached with
// persist.WithLogger next to any regular logger:
//
//	collector := metrics.NewCollector("app")
//	prometheus.MustRegister(collector)
//	plugin := persist.New(storage, version, persist.WithLogger(collector))
package metrics

import (
	"strconv"

	"github.com/goliatone/go-persist"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Collector counts plugin operations and times them.
type Collector struct {
	operations *prometheus.CounterVec
	writes     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	fields     prometheus.Histogram
}

var _ prometheus.Collector = (*Collector)(nil)
var _ persist.Logger = (*Collector)(nil)

// NewCollector builds an unregistered collector. namespace may be empty.
func NewCollector(namespace string) *Collector {
	return &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "operations_total",
			Help:      "Plugin operations by kind and outcome.",
		}, []string{"op", "store", "outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "records_written_total",
			Help:      "Records written to storage, split by whether they were merged into the stored record.",
		}, []string{"store", "merged"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "operation_duration_seconds",
			Help:      "Duration of successful rehydrate and persist operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		fields: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "record_fields",
			Help:      "Number of state fields per written record.",
			Buckets:   prometheus.LinearBuckets(1, 4, 8),
		}),
	}
}

// Log implements persist.Logger.
func (c *Collector) Log(event persist.LogEvent) {
	outcome := OutcomeOK
	switch {
	case event.Err != nil:
		outcome = OutcomeError
	case event.Skipped:
		outcome = OutcomeSkipped
	}
	c.operations.WithLabelValues(string(event.Op), event.StoreID, outcome).Inc()
	if outcome != OutcomeOK {
		return
	}

	switch event.Op {
	case persist.OpPersist:
		c.writes.WithLabelValues(event.StoreID, strconv.FormatBool(event.Merged)).Inc()
		c.fields.Observe(float64(event.Fields))
		c.duration.WithLabelValues(string(event.Op)).Observe(event.Duration.Seconds())
	case persist.OpRehydrate:
		c.duration.WithLabelValues(string(event.Op)).Observe(event.Duration.Seconds())
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.operations.Describe(ch)
	c.writes.Describe(ch)
	c.duration.Describe(ch)
	c.fields.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.operations.Collect(ch)
	c.writes.Collect(ch)
	c.duration.Collect(ch)
	c.fields.Collect(ch)
}
