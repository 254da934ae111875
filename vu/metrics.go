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

import "time"

// Metrics is a passive container bundling the summaries, RPS window, and
// error bookkeeping owned by a single VirtualUser while it runs, or by the
// VirtualUserManager after VUs have merged into it.
type Metrics struct {
	TotalLatency     Summary
	TCPConnectTime   Summary // reserved for future use, never populated
	TLSHandshakeTime Summary // reserved for future use, never populated
	HTTPRequestTime  Summary
	RpsSummary       RpsSummary

	TotalErrors      int64
	ErrorRatesPerSec Summary // reserved for future use, never populated

	StatusCodeCounts map[uint16]int64
	OtherErrors      []string
}

// NewMetrics returns an empty Metrics whose RpsSummary uses rpsWindowSize.
// A zero-value Metrics{} (as produced by a bare struct literal) has a
// zero-duration RpsSummary and is only valid as a merge destination, never
// as an operating VU's metrics.
func NewMetrics(rpsWindowSize time.Duration) *Metrics {
	return &Metrics{
		TotalLatency:     NewSummary(),
		TCPConnectTime:   NewSummary(),
		TLSHandshakeTime: NewSummary(),
		HTTPRequestTime:  NewSummary(),
		ErrorRatesPerSec: NewSummary(),
		RpsSummary:       NewRpsSummary(rpsWindowSize),
		StatusCodeCounts: make(map[uint16]int64),
	}
}

// recordStatus bumps the counter for an HTTP status code. HTTP 5xx is not
// treated as an error here — only transport failures bump TotalErrors.
func (m *Metrics) recordStatus(code int) {
	m.StatusCodeCounts[uint16(code)]++
}

// recordError bumps TotalErrors and appends the transport error's
// description, preserving order of occurrence.
func (m *Metrics) recordError(desc string) {
	m.TotalErrors++
	m.OtherErrors = append(m.OtherErrors, desc)
}

// mergeMetrics folds src into dest: every Summary via mergeSummary, error
// counters summed, status codes summed entry-wise, OtherErrors
// concatenated. RpsSummary is intentionally NOT merged — per-VU RPS
// windows can't be meaningfully summed without aligning their start
// instants.
func mergeMetrics(dest *Metrics, src *Metrics) {
	mergeSummary(&dest.TotalLatency, src.TotalLatency)
	mergeSummary(&dest.TCPConnectTime, src.TCPConnectTime)
	mergeSummary(&dest.TLSHandshakeTime, src.TLSHandshakeTime)
	mergeSummary(&dest.HTTPRequestTime, src.HTTPRequestTime)
	mergeSummary(&dest.ErrorRatesPerSec, src.ErrorRatesPerSec)

	dest.TotalErrors += src.TotalErrors
	if dest.StatusCodeCounts == nil {
		dest.StatusCodeCounts = make(map[uint16]int64)
	}
	for code, count := range src.StatusCodeCounts {
		dest.StatusCodeCounts[code] += count
	}
	dest.OtherErrors = append(dest.OtherErrors, src.OtherErrors...)
}
