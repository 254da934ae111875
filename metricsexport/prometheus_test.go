package metricsexport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/vuload/vu"
)

func TestCollectorExportsSnapshot(t *testing.T) {
	m := vu.NewMetrics(time.Second)
	m.TotalLatency.Update(0.1)
	m.TotalLatency.Update(0.3)
	m.HTTPRequestTime.Update(0.2)
	m.StatusCodeCounts[200] = 10
	m.StatusCodeCounts[500] = 1
	m.TotalErrors = 2

	c := NewCollector(func() vu.Metrics { return *m })

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	require.Contains(t, byName, "vuload_total_latency_seconds")
	require.Contains(t, byName, "vuload_requests_total")
	require.Contains(t, byName, "vuload_errors_total")

	errFam := byName["vuload_errors_total"]
	require.Len(t, errFam.Metric, 1)
	require.Equal(t, float64(2), errFam.Metric[0].Counter.GetValue())

	reqFam := byName["vuload_requests_total"]
	require.Len(t, reqFam.Metric, 2)
}

func TestCollectorOmitsEmptySummaries(t *testing.T) {
	m := vu.NewMetrics(time.Second)
	c := NewCollector(func() vu.Metrics { return *m })

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() == "vuload_total_latency_seconds" {
			require.Empty(t, f.Metric, "empty Summary must not emit samples")
		}
	}
}

func familyNamed(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestCollectorOmitsRpsSampleBeforeRpsSummaryStarted(t *testing.T) {
	m := vu.NewMetrics(time.Second)
	c := NewCollector(func() vu.Metrics { return *m })

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	f := familyNamed(families, "vuload_rps")
	require.Empty(t, f.GetMetric(), "current RPS with no started window must emit no sample, not a 0")
}

func TestCollectorEmitsRpsSampleOnceWindowHasACount(t *testing.T) {
	m := vu.NewMetrics(time.Second)
	m.RpsSummary.Start()
	require.NoError(t, m.RpsSummary.IncrementRequestCount())
	c := NewCollector(func() vu.Metrics { return *m })

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	f := familyNamed(families, "vuload_rps")
	require.NotNil(t, f)
	require.Len(t, f.GetMetric(), 1)
	require.Equal(t, float64(1), f.GetMetric()[0].GetGauge().GetValue())
}
