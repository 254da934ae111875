// Copyright 2014 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vu

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// vuState is the VirtualUser lifecycle: Fresh -> Running -> Stopped.
type vuState int32

const (
	vuFresh vuState = iota
	vuRunning
	vuStopped
)

// VirtualUser is a background actor running an independent closed-loop GET
// request sequence against a single URL. It owns one Metrics exclusively
// while running; MetricsHandle exposes locked access to it for the
// manager's merge step and any other concurrent reader.
type VirtualUser struct {
	url              string
	rpsWindowSize    time.Duration
	gracefulShutdown time.Duration
	client           Client

	mu      sync.Mutex
	metrics *Metrics

	state      atomic.Int32
	softStopCh chan struct{}
	hardCancel context.CancelFunc
	done       chan struct{}
}

// NewVirtualUser constructs a Fresh VirtualUser. rpsWindowSize == 0 is a
// construction-time error: the RPS estimator cannot bucket a zero-length
// window.
func NewVirtualUser(url string, rpsWindowSize time.Duration) (*VirtualUser, error) {
	if rpsWindowSize <= 0 {
		return nil, fmt.Errorf("vu: rps_window_size must be positive, got %s", rpsWindowSize)
	}
	return &VirtualUser{
		url:           url,
		rpsWindowSize: rpsWindowSize,
		metrics:       NewMetrics(rpsWindowSize),
	}, nil
}

// SetGracefulShutdown sets the upper bound on letting an in-flight request
// finish after Stop is called, and returns the VU for chaining.
func (v *VirtualUser) SetGracefulShutdown(d time.Duration) *VirtualUser {
	v.gracefulShutdown = d
	return v
}

// SetClient overrides the HTTP client used for requests; useful for
// sharing one transport across many VUs. When unset, Start builds a
// default client.
func (v *VirtualUser) SetClient(c Client) *VirtualUser {
	v.client = c
	return v
}

// Start transitions Fresh -> Running and spawns the request loop.
func (v *VirtualUser) Start() {
	if v.client == nil {
		c, err := NewClient(ClientOptions{Timeout: 30 * time.Second})
		if err != nil {
			// NewClient only fails on HTTP/2 transport configuration, which
			// is never requested by the ClientOptions above (H2 is unset).
			panic(fmt.Sprintf("vu: default client construction: %s", err))
		}
		v.client = c
	}

	v.state.Store(int32(vuRunning))
	v.softStopCh = make(chan struct{})
	v.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	v.hardCancel = cancel

	go v.loop(ctx)
}

// loop is the closed-loop request cycle: issue next request only when the
// previous one completes, no inter-request think time.
func (v *VirtualUser) loop(ctx context.Context) {
	defer close(v.done)

	v.mu.Lock()
	v.metrics.RpsSummary.Start()
	v.mu.Unlock()

	for {
		select {
		case <-v.softStopCh:
			return
		default:
		}

		reqStart := time.Now()
		status, err := v.client.Get(ctx, v.url)
		latency := time.Since(reqStart).Seconds()

		if ctx.Err() != nil {
			// Stop forcibly cancelled this request's context; its outcome
			// (err here is ctx.Err()'s transport wrapping, not a real
			// failure) must not be recorded.
			return
		}

		v.mu.Lock()
		v.metrics.TotalLatency.Update(latency)
		v.metrics.HTTPRequestTime.Update(latency)
		_ = v.metrics.RpsSummary.IncrementRequestCount() // cannot fail: Start() ran above
		v.mu.Unlock()

		v.mu.Lock()
		if err != nil {
			v.metrics.recordError(err.Error())
		} else {
			v.metrics.recordStatus(status)
		}
		v.mu.Unlock()
	}
}

// Stop signals cancellation and waits for the loop to finish, forcibly
// aborting the in-flight request if graceful shutdown would take too
// long. With GracefulShutdown == 0, Stop always aborts immediately.
func (v *VirtualUser) Stop(ctx context.Context) {
	if v.state.Load() != int32(vuRunning) {
		return
	}

	close(v.softStopCh)

	if v.gracefulShutdown > 0 {
		timer := time.NewTimer(v.gracefulShutdown)
		defer timer.Stop()
		select {
		case <-v.done:
		case <-timer.C:
			v.hardCancel()
			<-v.done
		case <-ctx.Done():
			v.hardCancel()
			<-v.done
		}
	} else {
		v.hardCancel()
		<-v.done
	}

	v.state.Store(int32(vuStopped))
}

// MetricsHandle is a shared, lock-protected view onto a VirtualUser's
// Metrics. The VU never holds this lock across a network call.
type MetricsHandle struct {
	mu *sync.Mutex
	m  *Metrics
}

// Metrics returns a handle to this VU's Metrics.
func (v *VirtualUser) Metrics() *MetricsHandle {
	return &MetricsHandle{mu: &v.mu, m: v.metrics}
}

// Snapshot copies the current Metrics under lock. Maps and slices are
// copied so the result is safe to read after the VU resumes mutating.
func (h *MetricsHandle) Snapshot() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := *h.m
	out.StatusCodeCounts = make(map[uint16]int64, len(h.m.StatusCodeCounts))
	for k, v := range h.m.StatusCodeCounts {
		out.StatusCodeCounts[k] = v
	}
	out.OtherErrors = append([]string(nil), h.m.OtherErrors...)
	out.RpsSummary.counters = append([]int64(nil), h.m.RpsSummary.counters...)
	return out
}
