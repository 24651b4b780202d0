// Package metrics collects Prometheus metrics of download runs. A Collector
// owns a private registry, so several collectors (one per test, for example)
// never clash, and can dump it in the node-exporter text file format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "huaban"

// Collector implements board_downloader.MetricsRecorder.
type Collector struct {
	registry *prometheus.Registry

	// itemsTotal counts stored pins by outcome (downloaded, skipped, failed)
	itemsTotal *prometheus.CounterVec
	// bytesTotal counts bytes written to disk
	bytesTotal prometheus.Counter
	// itemDuration tracks the time spent on one pin, cached ones included
	itemDuration prometheus.Histogram
	// runsTotal counts finished runs by terminal state
	runsTotal *prometheus.CounterVec
	// pinsListed is the number of pins listed by the last run
	pinsListed prometheus.Gauge
}

// New creates a Collector with all metrics registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Pins processed, by outcome.",
			},
			[]string{"outcome"},
		),
		bytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_downloaded_total",
			Help:      "Bytes of assets written to disk.",
		}),
		// 1ms .. ~16s
		itemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent storing one pin.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Download runs, by terminal state.",
			},
			[]string{"state"},
		),
		pinsListed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pins_listed",
			Help:      "Pins listed by the most recent run.",
		}),
	}
	c.registry.MustRegister(c.itemsTotal, c.bytesTotal, c.itemDuration, c.runsTotal, c.pinsListed)
	return c
}

// ObserveItem records the outcome of one pin.
func (c *Collector) ObserveItem(outcome string, bytes int64, elapsed time.Duration) {
	c.itemsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		c.bytesTotal.Add(float64(bytes))
	}
	c.itemDuration.Observe(elapsed.Seconds())
}

// ObserveRun records a finished run. listed is zero when the run failed
// before its pins were listed.
func (c *Collector) ObserveRun(state string, listed int) {
	c.runsTotal.WithLabelValues(state).Inc()
	c.pinsListed.Set(float64(listed))
}

// Gatherer exposes the registry, e.g. for promhttp or testutil.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteToTextfile writes all metrics to path in the text exposition format.
// The file is written atomically, as expected by the node exporter's textfile collector.
func (c *Collector) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
