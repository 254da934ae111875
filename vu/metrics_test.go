package vu

import (
	"testing"
	"time"
)

func TestMetricsTotalErrorsMatchesOtherErrors(t *testing.T) {
	m := NewMetrics(time.Second)
	m.recordError("connection refused")
	m.recordError("timeout")

	if m.TotalErrors != int64(len(m.OtherErrors)) {
		t.Fatalf("TotalErrors = %d, len(OtherErrors) = %d, want equal", m.TotalErrors, len(m.OtherErrors))
	}
}

func TestMergeMetrics(t *testing.T) {
	dest := NewMetrics(time.Second)
	dest.HTTPRequestTime.Update(0.1)
	dest.recordStatus(200)
	dest.recordError("err-a")

	src := NewMetrics(time.Second)
	src.HTTPRequestTime.Update(0.2)
	src.recordStatus(200)
	src.recordStatus(500)
	src.recordError("err-b")

	mergeMetrics(dest, src)

	if dest.HTTPRequestTime.Count() != 2 {
		t.Fatalf("HTTPRequestTime.Count() = %d, want 2", dest.HTTPRequestTime.Count())
	}
	if dest.StatusCodeCounts[200] != 2 {
		t.Fatalf("StatusCodeCounts[200] = %d, want 2", dest.StatusCodeCounts[200])
	}
	if dest.StatusCodeCounts[500] != 1 {
		t.Fatalf("StatusCodeCounts[500] = %d, want 1", dest.StatusCodeCounts[500])
	}
	if dest.TotalErrors != 2 {
		t.Fatalf("TotalErrors = %d, want 2", dest.TotalErrors)
	}
	if len(dest.OtherErrors) != 2 {
		t.Fatalf("len(OtherErrors) = %d, want 2", len(dest.OtherErrors))
	}
}

func TestMergeMetricsEmptySourceIsIdentity(t *testing.T) {
	dest := NewMetrics(time.Second)
	dest.HTTPRequestTime.Update(0.1)
	dest.HTTPRequestTime.Update(0.3)
	dest.recordStatus(200)

	src := NewMetrics(time.Second)

	mergeMetrics(dest, src)

	if dest.HTTPRequestTime.Count() != 2 {
		t.Fatalf("HTTPRequestTime.Count() = %d, want 2", dest.HTTPRequestTime.Count())
	}
	if min, _ := dest.HTTPRequestTime.Min(); min != 0.1 {
		t.Fatalf("HTTPRequestTime.Min() = %f, want 0.1", min)
	}
}

func TestMergeMetricsDoesNotTouchRpsSummary(t *testing.T) {
	dest := NewMetrics(time.Second)
	dest.RpsSummary.Start()
	_ = dest.RpsSummary.IncrementRequestCount()

	src := NewMetrics(time.Second)
	src.RpsSummary.Start()
	_ = src.RpsSummary.IncrementRequestCount()
	_ = src.RpsSummary.IncrementRequestCount()

	mergeMetrics(dest, src)

	all, err := dest.RpsSummary.GetAllRps()
	if err != nil {
		t.Fatalf("GetAllRps() error = %v", err)
	}
	if len(all) != 1 || all[0] != 1 {
		t.Fatalf("dest.RpsSummary was mutated by merge: %v", all)
	}
}
