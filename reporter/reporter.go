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

// Package reporter prints a periodic, read-only progress line for a
// running load test: active VU count and a smoothed RPS estimate. It
// never feeds back into the manager's ramp decisions — that would be
// adaptive rate control, which is out of scope.
package reporter

import (
	"context"
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/sirupsen/logrus"
)

// Snapshot is the subset of live run state the console reporter needs;
// the manager itself never knows this package exists.
type Snapshot struct {
	ActiveVUs   int
	TotalErrors int64
}

// Console periodically logs Snapshot data, smoothing request counts over
// a rolling window the way the teacher's consoleReport did with its
// counter1s/counter5s pair.
type Console struct {
	log      *logrus.Logger
	counter  *ratecounter.RateCounter
	interval time.Duration
}

// NewConsole returns a Console that smooths request counts over a 5s
// rolling window and logs every interval.
func NewConsole(log *logrus.Logger, interval time.Duration) *Console {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Console{
		log:      log,
		counter:  ratecounter.NewRateCounter(5 * time.Second),
		interval: interval,
	}
}

// Tick records a single completed request for the smoothed RPS estimate.
// Call it once per request completion, from anywhere that observes one
// (e.g. a Client wrapper).
func (c *Console) Tick() {
	c.counter.Incr(1)
}

// Run logs a progress line every interval until ctx is cancelled. The
// snapshot function is called fresh on every tick so Run never holds a
// stale view of the manager's state.
func (c *Console) Run(ctx context.Context, snapshot func() Snapshot) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := snapshot()
			rps := float64(c.counter.Rate()) / 5.0
			c.log.WithFields(logrus.Fields{
				"active_vus":   s.ActiveVUs,
				"rps":          rps,
				"total_errors": s.TotalErrors,
			}).Info("load test progress")
		}
	}
}
