package vu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManagerRampsUpAndDrainsToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := *NewVirtualUserConfig(srv.URL).
		WithRPSWindowSize(50 * time.Millisecond).
		WithGracefulShutdown(20 * time.Millisecond)

	m := NewVirtualUserManager(cfg)
	m.AddPlan(200*time.Millisecond, 4)
	m.AddPlan(100*time.Millisecond, 0)

	m.Run(context.Background())

	require.Len(t, m.running, 0)
	require.Greater(t, m.OverallMetrics().HTTPRequestTime.Count(), int64(0))
	require.Zero(t, m.OverallMetrics().TotalErrors)
}

func TestManagerSegmentWithUnchangedTargetSpawnsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := *NewVirtualUserConfig(srv.URL).WithRPSWindowSize(50 * time.Millisecond)
	m := NewVirtualUserManager(cfg)

	m.spawnOne()
	m.spawnOne()
	require.Len(t, m.running, 2)

	m.runSegment(context.Background(), PlanSegment{Duration: 50 * time.Millisecond, Target: 2})
	require.Len(t, m.running, 2)

	// Clean up.
	for len(m.running) > 0 {
		m.stopOneLIFO(context.Background())
	}
}

func TestManagerZeroDurationSegmentConvergesImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := *NewVirtualUserConfig(srv.URL).WithRPSWindowSize(50 * time.Millisecond)
	m := NewVirtualUserManager(cfg)

	m.runSegment(context.Background(), PlanSegment{Duration: 0, Target: 3})
	require.Len(t, m.running, 3)

	for len(m.running) > 0 {
		m.stopOneLIFO(context.Background())
	}
}

func TestRampDeltaDeadBand(t *testing.T) {
	require.Equal(t, 0, rampDelta(5.4, 5))
	require.Equal(t, 0, rampDelta(4.6, 5))
	require.Equal(t, 1, rampDelta(6.0, 5))
	require.Equal(t, -1, rampDelta(4.0, 5))
	require.Equal(t, 3, rampDelta(10.9, 7))
}

func TestManagerOverallMetricsExcludesLiveVUs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := *NewVirtualUserConfig(srv.URL).WithRPSWindowSize(50 * time.Millisecond)
	m := NewVirtualUserManager(cfg)
	m.spawnOne()
	time.Sleep(20 * time.Millisecond)

	// The VU is still live: OverallMetrics must not include its counts yet.
	require.Zero(t, m.OverallMetrics().HTTPRequestTime.Count())

	m.stopOneLIFO(context.Background())
	require.Greater(t, m.OverallMetrics().HTTPRequestTime.Count(), int64(0))
}

func TestManagerActiveVUsTracksSpawnAndStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := *NewVirtualUserConfig(srv.URL).WithRPSWindowSize(50 * time.Millisecond)
	m := NewVirtualUserManager(cfg)
	require.Equal(t, 0, m.ActiveVUs())

	m.spawnOne()
	m.spawnOne()
	require.Equal(t, 2, m.ActiveVUs())

	m.stopOneLIFO(context.Background())
	require.Equal(t, 1, m.ActiveVUs())

	m.stopOneLIFO(context.Background())
	require.Equal(t, 0, m.ActiveVUs())
}

func TestManagerRunRespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := *NewVirtualUserConfig(srv.URL).WithRPSWindowSize(50 * time.Millisecond)
	m := NewVirtualUserManager(cfg)
	m.AddPlan(5*time.Second, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not respect context cancellation")
	}
	require.Len(t, m.running, 0)
}
