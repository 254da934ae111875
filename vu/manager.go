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
	"math"
	"sync/atomic"
	"time"
)

// tickInterval is how often the ramp loop re-evaluates the ideal VU count.
const tickInterval = 100 * time.Millisecond

// PlanSegment is one ramp stage: ramp the live VU count linearly to target
// over duration, starting from whatever count is live at segment entry.
type PlanSegment struct {
	Duration time.Duration
	Target   int
}

// VirtualUserConfig configures every VU the manager spawns.
type VirtualUserConfig struct {
	URL              string
	RPSWindowSize    time.Duration
	GracefulShutdown time.Duration
	Client           Client
}

// NewVirtualUserConfig returns a config with the default window size (1s)
// and graceful shutdown (0).
func NewVirtualUserConfig(url string) *VirtualUserConfig {
	return &VirtualUserConfig{
		URL:           url,
		RPSWindowSize: time.Second,
	}
}

// WithRPSWindowSize sets the RPS estimator's window size and returns the
// config for chaining.
func (c *VirtualUserConfig) WithRPSWindowSize(d time.Duration) *VirtualUserConfig {
	c.RPSWindowSize = d
	return c
}

// WithGracefulShutdown sets the graceful shutdown bound and returns the
// config for chaining.
func (c *VirtualUserConfig) WithGracefulShutdown(d time.Duration) *VirtualUserConfig {
	c.GracefulShutdown = d
	return c
}

// WithClient sets a shared HTTP client used by every spawned VU and
// returns the config for chaining.
func (c *VirtualUserConfig) WithClient(cl Client) *VirtualUserConfig {
	c.Client = cl
	return c
}

// VirtualUserManager drives a sequence of ramp plans by creating/
// destroying VUs on a tick, merging each terminated VU's metrics into an
// overall Metrics. running and overall are owned solely by the goroutine
// calling Run and require no locking; activeVUs is kept separately as an
// atomic counter so a progress reporter on another goroutine can poll
// ActiveVUs without racing Run.
type VirtualUserManager struct {
	config    VirtualUserConfig
	plans     []PlanSegment
	running   []*VirtualUser
	overall   *Metrics
	activeVUs atomic.Int64
}

// NewVirtualUserManager constructs a manager with no plan segments yet.
func NewVirtualUserManager(config VirtualUserConfig) *VirtualUserManager {
	return &VirtualUserManager{
		config:  config,
		overall: NewMetrics(config.RPSWindowSize),
	}
}

// AddPlan appends a ramp segment.
func (m *VirtualUserManager) AddPlan(duration time.Duration, target int) {
	m.plans = append(m.plans, PlanSegment{Duration: duration, Target: target})
}

// spawnOne constructs and starts one VU from the manager's config.
func (m *VirtualUserManager) spawnOne() {
	v, err := NewVirtualUser(m.config.URL, m.config.RPSWindowSize)
	if err != nil {
		// Construction only fails on a non-positive window size, which
		// NewVirtualUserConfig defaults to 1s; a caller who
		// overwrote RPSWindowSize with 0 gets a clear panic here rather
		// than a silently-broken VU.
		panic(err)
	}
	v.SetGracefulShutdown(m.config.GracefulShutdown)
	if m.config.Client != nil {
		v.SetClient(m.config.Client)
	}
	v.Start()
	m.running = append(m.running, v)
	m.activeVUs.Add(1)
}

// stopOneLIFO stops the most recently added VU and merges its metrics into
// overall. Long-lived VUs dominate mid-ramp metrics by construction — a
// reasonable default for staged load tests.
func (m *VirtualUserManager) stopOneLIFO(ctx context.Context) {
	n := len(m.running)
	if n == 0 {
		return
	}
	v := m.running[n-1]
	m.running = m.running[:n-1]
	m.activeVUs.Add(-1)

	v.Stop(ctx)
	snap := v.Metrics().Snapshot()
	mergeMetrics(m.overall, &snap)
}

// converge spawns or stops VUs until len(running) == target, used by the
// post-segment fixup once the dead-banded tick loop has exited.
func (m *VirtualUserManager) converge(ctx context.Context, target int) {
	for len(m.running) < target {
		m.spawnOne()
	}
	for len(m.running) > target {
		m.stopOneLIFO(ctx)
	}
}

// rampDelta computes the bounded step toward ideal from the current count,
// applying the (-1, 1) dead-band that suppresses jitter from sub-unit
// drift in ideal.
func rampDelta(ideal float64, current int) int {
	diff := ideal - float64(current)
	switch {
	case diff >= 1:
		return int(math.Floor(diff))
	case diff <= -1:
		return int(math.Ceil(diff))
	default:
		return 0
	}
}

// runSegment executes one ramp segment: a dead-banded linear interpolation
// toward target over duration, followed by a fixup step that forces exact
// convergence regardless of how duration or target relate to the current
// live count (this resolves spec.md's Open Question on duration == 0 and
// on gaps larger than one tick can close).
func (m *VirtualUserManager) runSegment(ctx context.Context, seg PlanSegment) {
	startCount := len(m.running)
	change := seg.Target - startCount
	t0 := time.Now()

	for time.Since(t0) < seg.Duration {
		select {
		case <-ctx.Done():
			// Cooperative cancellation: stop ramping toward target, leave
			// draining to Run's unconditional post-loop teardown.
			return
		default:
		}

		ratio := float64(time.Since(t0)) / float64(seg.Duration)
		ideal := float64(startCount) + float64(change)*ratio
		delta := rampDelta(ideal, len(m.running))

		switch {
		case delta > 0:
			for i := 0; i < delta; i++ {
				m.spawnOne()
			}
		case delta < 0:
			for i := 0; i < -delta; i++ {
				m.stopOneLIFO(ctx)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(tickInterval):
		}
	}

	m.converge(ctx, seg.Target)
}

// Run executes every plan segment in order, then drains all remaining VUs.
// ctx may be cancelled to cooperatively stop at the next tick boundary;
// cancellation still drains and merges every live VU before returning.
func (m *VirtualUserManager) Run(ctx context.Context) {
	for _, seg := range m.plans {
		m.runSegment(ctx, seg)
		if ctx.Err() != nil {
			break
		}
	}

	// Drain: stop every remaining VU and merge, regardless of how Run exited.
	for len(m.running) > 0 {
		m.stopOneLIFO(context.Background())
	}
}

// OverallMetrics returns the merged metrics of every VU that has stopped
// so far. VUs still live when this is called are not included; callers
// are expected to call it after Run returns.
func (m *VirtualUserManager) OverallMetrics() *Metrics {
	return m.overall
}

// ActiveVUs returns the number of VUs currently live. Safe to call from
// any goroutine, including one polling concurrently with Run.
func (m *VirtualUserManager) ActiveVUs() int {
	return int(m.activeVUs.Load())
}
