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

// Command vuload is a ramping-VU HTTP load generator: it runs a plan of
// (duration, target) stages, linearly ramping the number of concurrent
// closed-loop virtual users between stages, and prints a latency/error/
// status-code summary at the end.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/bpowers/vuload/config"
	"github.com/bpowers/vuload/metricsexport"
	"github.com/bpowers/vuload/reporter"
	"github.com/bpowers/vuload/script"
	"github.com/bpowers/vuload/vu"
)

var usage = `Usage: vuload [options...] <plan file>

The plan file is either a Starlark script (.star) or a flat YAML
document (.yaml/.yml) describing a target URL, VU defaults, and an
ordered list of (duration, target) ramp stages. See package script and
package config for the accepted formats.

Options:
  -h2                    Enable HTTP/2.
  -timeout duration      Per-request timeout. Default 20s.
  -insecure              Skip TLS certificate verification.
  -disable-compression   Disable compression.
  -disable-keepalive     Disable HTTP keep-alives.
  -user-agent string     HTTP User-Agent header.
  -report-interval duration
                         How often to log progress. Default 5s.
  -metrics-addr host:port
                         If set, serve Prometheus metrics at /metrics
                         while the run is in progress.
  -cpus n                Number of OS threads to use. Default is
                         runtime.NumCPU().

Any of -h2, -timeout, -disable-keepalive, and -user-agent may also be set
from the plan file; a flag given explicitly on the command line always
wins over the plan file's value.
`

const defaultUserAgent = "vuload/0.0.1"

var (
	h2                 = flag.Bool("h2", false, "")
	timeout            = flag.Duration("timeout", 20*time.Second, "")
	insecure           = flag.Bool("insecure", false, "")
	disableCompression = flag.Bool("disable-compression", false, "")
	disableKeepAlives  = flag.Bool("disable-keepalive", false, "")
	userAgent          = flag.String("user-agent", defaultUserAgent, "")
	reportInterval     = flag.Duration("report-interval", 5*time.Second, "")
	metricsAddr        = flag.String("metrics-addr", "", "")
	cpus               = flag.Int("cpus", runtime.NumCPU(), "")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	flag.Parse()
	if flag.NArg() < 1 {
		usageAndExit("")
	}
	runtime.GOMAXPROCS(*cpus)

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	path := flag.Args()[0]
	plan, err := loadPlan(path)
	if err != nil {
		log.WithError(err).Fatal("failed to load plan")
	}

	explicitFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicitFlags[f.Name] = true })

	effectiveH2 := plan.H2
	if explicitFlags["h2"] {
		effectiveH2 = *h2
	}
	effectiveDisableKeepAlives := plan.DisableKeepAlive
	if explicitFlags["disable-keepalive"] {
		effectiveDisableKeepAlives = *disableKeepAlives
	}
	effectiveTimeout := plan.Timeout
	if explicitFlags["timeout"] || effectiveTimeout <= 0 {
		effectiveTimeout = *timeout
	}
	effectiveUserAgent := plan.UserAgent
	if explicitFlags["user-agent"] || effectiveUserAgent == "" {
		effectiveUserAgent = *userAgent
	}

	client, err := vu.NewClient(vu.ClientOptions{
		H2:                 effectiveH2,
		DisableCompression: *disableCompression,
		DisableKeepAlives:  effectiveDisableKeepAlives,
		InsecureSkipVerify: *insecure,
		Timeout:            effectiveTimeout,
		UserAgent:          effectiveUserAgent,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build HTTP client")
	}

	console := reporter.NewConsole(log, *reportInterval)
	client = tappedClient{inner: client, onComplete: console.Tick}

	cfg := vu.NewVirtualUserConfig(plan.URL).
		WithRPSWindowSize(plan.RPSWindowSize).
		WithGracefulShutdown(plan.GracefulShutdown).
		WithClient(client)
	mgr := vu.NewVirtualUserManager(*cfg)
	for _, s := range plan.Stages {
		mgr.AddPlan(s.Duration, s.Target)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Warn("received interrupt, draining virtual users")
		cancel()
	}()

	if *metricsAddr != "" {
		serveMetrics(log, mgr)
	}

	reportCtx, stopReport := context.WithCancel(context.Background())
	go console.Run(reportCtx, func() reporter.Snapshot {
		return reporter.Snapshot{
			ActiveVUs:   mgr.ActiveVUs(),
			TotalErrors: mgr.OverallMetrics().TotalErrors,
		}
	})

	log.WithFields(logrus.Fields{"url": plan.URL, "stages": len(plan.Stages)}).Info("starting load test")
	mgr.Run(ctx)
	stopReport()

	printSummary(mgr.OverallMetrics())
}

// tappedClient decorates a vu.Client with a completion callback, used to
// feed the console reporter's smoothed RPS counter without involving the
// core vu package in logging concerns.
type tappedClient struct {
	inner      vu.Client
	onComplete func()
}

func (t tappedClient) Get(ctx context.Context, url string) (int, error) {
	status, err := t.inner.Get(ctx, url)
	t.onComplete()
	return status, err
}

// loadPlan picks the Starlark or YAML loader by file extension.
func loadPlan(path string) (script.PlanConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return config.Load(path)
	default:
		return script.Load(path)
	}
}

// serveMetrics starts a background HTTP server exposing /metrics for the
// duration of the process; it is never explicitly shut down because it
// shares the process lifetime with main.
func serveMetrics(log *logrus.Logger, mgr *vu.VirtualUserManager) {
	collector := metricsexport.NewCollector(func() vu.Metrics { return *mgr.OverallMetrics() })
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server exited")
		}
	}()
	log.WithField("addr", *metricsAddr).Info("serving prometheus metrics")
}

func printSummary(m *vu.Metrics) {
	fmt.Println()
	fmt.Println("Summary:")
	if avg, ok := m.HTTPRequestTime.Average(); ok {
		fmt.Printf("  Avg request time:   %s\n", time.Duration(avg*float64(time.Second)))
	}
	if avg, ok := m.TotalLatency.Average(); ok {
		fmt.Printf("  Avg total latency:  %s\n", time.Duration(avg*float64(time.Second)))
	}
	fmt.Printf("  Total errors:       %d\n", m.TotalErrors)
	fmt.Println("  Status code distribution:")
	for code, count := range m.StatusCodeCounts {
		fmt.Printf("    [%d]\t%d responses\n", code, count)
	}
}

func usageAndExit(msg string) {
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	flag.Usage()
	fmt.Println()
	os.Exit(1)
}
