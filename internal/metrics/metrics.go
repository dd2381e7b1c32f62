// Package metrics tracks counters, gauges and timings for a single report run.
//
// Metrics are registered lazily on a private Prometheus registry the first
// time a name is used. Because umami-report is a short-lived batch job, the
// registry is not scraped; Push sends it once to a Prometheus Pushgateway at
// the end of the run.
package metrics

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Namespace prefixes every metric name.
const Namespace = "umami_report"

var invalidChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Metrics tracks operational metrics. All operations are thread-safe.
//
// Counters track incrementing values (e.g. stats requests made).
// Gauges track point-in-time values (e.g. pageviews in the window).
// Timings are recorded into histograms in seconds.
type Metrics struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	timings  map[string]prometheus.Histogram
}

// New creates a metrics tracker backed by a fresh registry.
func New() *Metrics {
	return &Metrics{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
		timings:  make(map[string]prometheus.Histogram),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// metricName turns "umami.stats.requests" into "umami_stats_requests".
func metricName(name string) string {
	return invalidChars.ReplaceAllString(name, "_")
}

// IncrCounter increments a counter by 1, creating it on first use.
func (m *Metrics) IncrCounter(name string) {
	m.counter(name).Inc()
}

func (m *Metrics) counter(name string) prometheus.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      metricName(name) + "_total",
		Help:      fmt.Sprintf("Count of %s.", name),
	})
	m.registry.MustRegister(c)
	m.counters[name] = c
	return c
}

// SetGauge sets a gauge to value, overwriting any previous value.
func (m *Metrics) SetGauge(name string, value float64) {
	m.gauge(name).Set(value)
}

func (m *Metrics) gauge(name string) prometheus.Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      metricName(name),
		Help:      fmt.Sprintf("Last observed %s.", name),
	})
	m.registry.MustRegister(g)
	m.gauges[name] = g
	return g
}

// RecordTiming records a duration observation.
func (m *Metrics) RecordTiming(name string, d time.Duration) {
	m.timing(name).Observe(d.Seconds())
}

func (m *Metrics) timing(name string) prometheus.Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.timings[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      metricName(name) + "_seconds",
		Help:      fmt.Sprintf("Duration of %s.", name),
		Buckets:   prometheus.DefBuckets,
	})
	m.registry.MustRegister(h)
	m.timings[name] = h
	return h
}

// GetSnapshot returns the current metric values keyed by Prometheus name.
// Histograms report their sample count.
func (m *Metrics) GetSnapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	snapshot := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				snapshot[mf.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				snapshot[mf.GetName()] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				snapshot[mf.GetName()] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return snapshot, nil
}

// Names returns the sorted Prometheus names of all registered metrics.
func (m *Metrics) Names() []string {
	snap, err := m.GetSnapshot()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(snap))
	for n := range snap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Push sends every registered metric to a Pushgateway under job, replacing
// the previous push for the same grouping.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	err := push.New(gatewayURL, job).
		Gatherer(m.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
