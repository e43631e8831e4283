// Package metrics exports collapse run statistics as prometheus metrics.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/danpilch/foldstack/pkg/collapse"
)

const namespace = "foldstack"

// Collapse holds the metrics of one process.
type Collapse struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	bytes    prometheus.Counter
	stacks   prometheus.Counter
	samples  prometheus.Counter
	chunks   prometheus.Counter
	unique   prometheus.Gauge
	duration prometheus.Histogram
}

// New creates and registers the collapse metrics on a private registry.
func New() *Collapse {
	c := &Collapse{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Collapse runs by result.",
		}, []string{"format", "result"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Bytes of profiler output read.",
		}),
		stacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stacks_total",
			Help:      "Stacks folded.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Sum of the sample counts of all folded stacks.",
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks dispatched to workers.",
		}),
		unique: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unique_stacks",
			Help:      "Distinct stacks written by the last run.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of collapse runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	c.registry.MustRegister(c.runs, c.bytes, c.stacks, c.samples, c.chunks, c.unique, c.duration)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collapse) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records a successful run.
func (c *Collapse) Observe(format string, s collapse.Stats) {
	c.runs.WithLabelValues(format, "ok").Inc()
	c.bytes.Add(float64(s.Bytes))
	c.stacks.Add(float64(s.Stacks))
	c.samples.Add(float64(s.Samples))
	c.chunks.Add(float64(s.Chunks))
	c.unique.Set(float64(s.Unique))
	c.duration.Observe(s.Duration.Seconds())
}

// ObserveError records a failed run.
func (c *Collapse) ObserveError(format string) {
	c.runs.WithLabelValues(format, "error").Inc()
}

// WriteTextfile writes the metrics in the node_exporter textfile format.
func (c *Collapse) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, c.registry), "write metrics to %s", path)
}
