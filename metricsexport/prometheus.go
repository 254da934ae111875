// Package metricsexport adapts a live vu.Metrics snapshot to the
// Prometheus client library's pull model, grounded on the Collector
// pattern in other_examples' xk6-dashboard Prometheus adapter. Unlike
// that adapter, which registers one static gauge/counter/histogram per
// named sample type up front, this Collector builds its samples from a
// Metrics snapshot taken at scrape time: the set of status codes isn't
// known ahead of time.
package metricsexport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bpowers/vuload/vu"
)

var (
	totalLatencySeconds = prometheus.NewDesc(
		"vuload_total_latency_seconds",
		"Summary of total request latency, including queueing, in seconds.",
		[]string{"stat"}, nil,
	)
	httpRequestSeconds = prometheus.NewDesc(
		"vuload_http_request_duration_seconds",
		"Summary of HTTP round-trip time, excluding queueing, in seconds.",
		[]string{"stat"}, nil,
	)
	requestsTotal = prometheus.NewDesc(
		"vuload_requests_total",
		"Total requests completed, by status code.",
		[]string{"status_code"}, nil,
	)
	errorsTotal = prometheus.NewDesc(
		"vuload_errors_total",
		"Total requests that failed before a status code was read.",
		nil, nil,
	)
	currentRps = prometheus.NewDesc(
		"vuload_rps",
		"Requests completed per second in the most recent window.",
		nil, nil,
	)
)

// Collector exposes a live *vu.Metrics as Prometheus metrics. Because
// Metrics is mutated concurrently by running VirtualUsers, Collect
// takes a snapshot (via the supplied accessor) on every scrape rather
// than holding a reference that could race the collection loop.
type Collector struct {
	snapshot func() vu.Metrics
}

// NewCollector returns a Collector that calls snapshot on every scrape.
// Callers typically pass (*vu.VirtualUserManager).OverallMetrics
// wrapped to dereference, e.g. func() vu.Metrics { return
// *mgr.OverallMetrics() }, or a VirtualUser's handle method value
// v.Metrics().Snapshot directly.
func NewCollector(snapshot func() vu.Metrics) *Collector {
	return &Collector{snapshot: snapshot}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- totalLatencySeconds
	ch <- httpRequestSeconds
	ch <- requestsTotal
	ch <- errorsTotal
	ch <- currentRps
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.snapshot()

	emitSummary(ch, totalLatencySeconds, m.TotalLatency)
	emitSummary(ch, httpRequestSeconds, m.HTTPRequestTime)

	for code, count := range m.StatusCodeCounts {
		ch <- prometheus.MustNewConstMetric(
			requestsTotal, prometheus.CounterValue, float64(count), strconv.Itoa(int(code)),
		)
	}

	ch <- prometheus.MustNewConstMetric(errorsTotal, prometheus.CounterValue, float64(m.TotalErrors))

	if rps, ok, err := m.RpsSummary.GetCurrentRps(); err == nil && ok {
		ch <- prometheus.MustNewConstMetric(currentRps, prometheus.GaugeValue, rps)
	}
}

func emitSummary(ch chan<- prometheus.Metric, desc *prometheus.Desc, s vu.Summary) {
	if avg, ok := s.Average(); ok {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, avg, "avg")
	}
	if min, ok := s.Min(); ok {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, min, "min")
	}
	if max, ok := s.Max(); ok {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, max, "max")
	}
}
