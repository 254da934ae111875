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
	"errors"
	"math/big"
	"time"
)

// ErrNotStarted is returned by RpsSummary operations that require Start
// to have been called first.
var ErrNotStarted = errors.New("rps_summary: not started")

// ErrEmptyRequestCount is returned when reading an RPS estimate before any
// request has been recorded.
var ErrEmptyRequestCount = errors.New("rps_summary: no requests recorded")

// RpsSummary is a bucketed request counter over a fixed wall-clock window.
// The bucket for a sample at elapsed time e is floor(e / windowSize); the
// counter slice grows lazily so len(counters)-1 always equals the highest
// window index ever incremented.
type RpsSummary struct {
	counters   []int64
	windowSize time.Duration
	started    bool
	startAt    time.Time
}

// NewRpsSummary returns an unstarted RpsSummary with the given window size.
func NewRpsSummary(windowSize time.Duration) RpsSummary {
	return RpsSummary{windowSize: windowSize}
}

// Start sets the start instant to now, re-basing elapsed-time calculations.
func (r *RpsSummary) Start() {
	r.startAt = time.Now()
	r.started = true
}

// Reset clears counters and forgets the start instant.
func (r *RpsSummary) Reset() {
	r.counters = nil
	r.started = false
	r.startAt = time.Time{}
}

// windowIndex computes floor(elapsed / windowSize) using 128-bit
// arithmetic so multi-day runs with a fine-grained window never overflow
// an int64 nanosecond count.
func windowIndex(elapsed, windowSize time.Duration) int64 {
	num := big.NewInt(int64(elapsed))
	den := big.NewInt(int64(windowSize))
	idx := new(big.Int).Quo(num, den)
	return idx.Int64()
}

// IncrementRequestCount bumps the counter for the window containing now().
func (r *RpsSummary) IncrementRequestCount() error {
	if !r.started {
		return ErrNotStarted
	}
	idx := windowIndex(time.Since(r.startAt), r.windowSize)
	r.growTo(idx)
	r.counters[idx]++
	return nil
}

func (r *RpsSummary) growTo(idx int64) {
	for int64(len(r.counters)) <= idx {
		r.counters = append(r.counters, 0)
	}
}

// GetCurrentRps returns the in-progress window's count divided by the full
// window size — a rate estimate, not a measurement of elapsed-within-window
// — and true. It returns (0, false, nil) when the current window has not
// yet received a request (the window exists in time but not in the
// counter slice).
func (r *RpsSummary) GetCurrentRps() (float64, bool, error) {
	if !r.started {
		return 0, false, ErrNotStarted
	}
	if len(r.counters) == 0 {
		return 0, false, ErrEmptyRequestCount
	}
	idx := windowIndex(time.Since(r.startAt), r.windowSize)
	if idx >= int64(len(r.counters)) {
		return 0, false, nil
	}
	return float64(r.counters[idx]) / r.windowSize.Seconds(), true, nil
}

// GetAverageRps returns the sum of all counters divided by total elapsed
// seconds since Start.
func (r *RpsSummary) GetAverageRps() (float64, error) {
	if !r.started {
		return 0, ErrNotStarted
	}
	if len(r.counters) == 0 {
		return 0, ErrEmptyRequestCount
	}
	var total int64
	for _, c := range r.counters {
		total += c
	}
	elapsed := time.Since(r.startAt).Seconds()
	if elapsed <= 0 {
		return 0, nil
	}
	return float64(total) / elapsed, nil
}

// GetAllRps returns counters[i]/windowSizeSeconds for every recorded
// window, in order.
func (r *RpsSummary) GetAllRps() ([]float64, error) {
	if !r.started {
		return nil, ErrNotStarted
	}
	if len(r.counters) == 0 {
		return nil, ErrEmptyRequestCount
	}
	out := make([]float64, len(r.counters))
	windowSeconds := r.windowSize.Seconds()
	for i, c := range r.counters {
		out[i] = float64(c) / windowSeconds
	}
	return out, nil
}
