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

import "math"

// Summary is a streaming min/max/sum/count aggregate over real-valued
// samples. A freshly constructed Summary seeds min with +Inf and max with
// -Inf so the first Update installs the true extrema without a branch.
type Summary struct {
	min, max, sum float64
	count         int64
}

// NewSummary returns an empty Summary.
func NewSummary() Summary {
	return Summary{min: math.Inf(1), max: math.Inf(-1)}
}

// Update folds v into the aggregate.
func (s *Summary) Update(v float64) {
	if v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
	s.sum += v
	s.count++
}

// UpdateOptional calls Update when v is non-nil; it is a no-op otherwise.
func (s *Summary) UpdateOptional(v *float64) {
	if v == nil {
		return
	}
	s.Update(*v)
}

// Average returns sum/count and true, or (0, false) when empty.
func (s *Summary) Average() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.sum / float64(s.count), true
}

// Min returns the smallest observed sample, or (0, false) when empty.
func (s *Summary) Min() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.min, true
}

// Max returns the largest observed sample, or (0, false) when empty.
func (s *Summary) Max() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.max, true
}

// Sum returns the running sum; 0 on an empty Summary.
func (s *Summary) Sum() float64 {
	return s.sum
}

// Count returns the number of samples observed.
func (s *Summary) Count() int64 {
	return s.count
}

// mergeSummary folds src into dest. Merging an empty src (its sentinel
// +Inf/-Inf extrema) is a no-op by construction: the guard below is what
// keeps those sentinels from ever reaching dest. An empty dest (including a
// zero-value Summary{}) simply takes src's extrema.
func mergeSummary(dest *Summary, src Summary) {
	if src.count == 0 {
		return
	}
	if dest.count == 0 {
		*dest = src
		return
	}
	if src.min < dest.min {
		dest.min = src.min
	}
	if src.max > dest.max {
		dest.max = src.max
	}
	dest.sum += src.sum
	dest.count += src.count
}
