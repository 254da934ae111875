// Copyright 2019 The hithere Authors. All rights reserved.
// Use of this source code is governed by the Apache License,
// Version 2.0, that can be found in the LICENSE file.

// Package script loads a load-test plan — target URL, VU defaults, and an
// ordered list of ramp stages — from a Starlark file. Unlike the teacher
// package it is adapted from, it exposes no HTTP builtins: there is
// nothing here for a script to template a request body against or assert
// a response against, by design.
package script

import (
	"fmt"
	"time"

	"go.starlark.net/starlark"
)

// StageConfig is one (duration, target) ramp stage, as read from a
// script's `stages` global.
type StageConfig struct {
	Duration time.Duration
	Target   int
}

// PlanConfig is the Go-native result of loading a plan, independent of
// whether it came from Starlark (this package) or YAML (package config).
// H2, Timeout, UserAgent and DisableKeepAlive configure the HTTP client
// every VU shares; the zero value of each defers to main's own CLI-flag
// default, so a plan file only needs to set what it wants to override.
type PlanConfig struct {
	URL              string
	RPSWindowSize    time.Duration
	GracefulShutdown time.Duration
	Stages           []StageConfig

	H2               bool
	Timeout          time.Duration
	UserAgent        string
	DisableKeepAlive bool
}

// Load executes the Starlark file at path and extracts a PlanConfig from
// its globals:
//
//	url = "http://localhost:8080/"
//	rps_window_size_ms = 1000   # optional, defaults to 1000
//	graceful_shutdown_ms = 0    # optional, defaults to 0
//	h2 = False                  # optional, defaults to False
//	timeout_ms = 20000           # optional, defaults to 0 (main's own default)
//	user_agent = "load-test/1"   # optional, defaults to "" (main's own default)
//	disable_keepalive = False    # optional, defaults to False
//	stages = [
//	    (10, 50),  # ramp from whatever is live to 50 VUs over 10s
//	    (30, 50),  # hold 50 VUs for 30s
//	    (10, 0),   # ramp down to 0 VUs over 10s
//	]
func Load(path string) (PlanConfig, error) {
	thread := &starlark.Thread{Name: "vuload-plan"}
	globals, err := starlark.ExecFile(thread, path, nil, nil)
	if err != nil {
		return PlanConfig{}, fmt.Errorf("script.Load(%s): %w", path, err)
	}

	cfg := PlanConfig{
		RPSWindowSize: time.Second,
	}

	urlVal, ok := globals["url"]
	if !ok {
		return PlanConfig{}, fmt.Errorf("script.Load(%s): missing required global %q", path, "url")
	}
	urlStr, ok := starlark.AsString(urlVal)
	if !ok {
		return PlanConfig{}, fmt.Errorf("script.Load(%s): %s must be a string", path, "url")
	}
	cfg.URL = urlStr

	if v, ok := globals["rps_window_size_ms"]; ok {
		ms, err := intValue(v, "rps_window_size_ms")
		if err != nil {
			return PlanConfig{}, fmt.Errorf("script.Load(%s): %w", path, err)
		}
		cfg.RPSWindowSize = time.Duration(ms) * time.Millisecond
	}

	if v, ok := globals["graceful_shutdown_ms"]; ok {
		ms, err := intValue(v, "graceful_shutdown_ms")
		if err != nil {
			return PlanConfig{}, fmt.Errorf("script.Load(%s): %w", path, err)
		}
		cfg.GracefulShutdown = time.Duration(ms) * time.Millisecond
	}

	if v, ok := globals["h2"]; ok {
		b, err := boolValue(v, "h2")
		if err != nil {
			return PlanConfig{}, fmt.Errorf("script.Load(%s): %w", path, err)
		}
		cfg.H2 = b
	}

	if v, ok := globals["timeout_ms"]; ok {
		ms, err := intValue(v, "timeout_ms")
		if err != nil {
			return PlanConfig{}, fmt.Errorf("script.Load(%s): %w", path, err)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}

	if v, ok := globals["user_agent"]; ok {
		ua, ok := starlark.AsString(v)
		if !ok {
			return PlanConfig{}, fmt.Errorf("script.Load(%s): %s must be a string", path, "user_agent")
		}
		cfg.UserAgent = ua
	}

	if v, ok := globals["disable_keepalive"]; ok {
		b, err := boolValue(v, "disable_keepalive")
		if err != nil {
			return PlanConfig{}, fmt.Errorf("script.Load(%s): %w", path, err)
		}
		cfg.DisableKeepAlive = b
	}

	stagesVal, ok := globals["stages"]
	if !ok {
		return PlanConfig{}, fmt.Errorf("script.Load(%s): missing required global %q", path, "stages")
	}
	stages, err := parseStages(stagesVal)
	if err != nil {
		return PlanConfig{}, fmt.Errorf("script.Load(%s): %w", path, err)
	}
	cfg.Stages = stages

	return cfg, nil
}

func boolValue(v starlark.Value, name string) (bool, error) {
	b, ok := v.(starlark.Bool)
	if !ok {
		return false, fmt.Errorf("%s must be a bool, got %s", name, v.Type())
	}
	return bool(b), nil
}

func intValue(v starlark.Value, name string) (int64, error) {
	i, ok := v.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%s must be an int, got %s", name, v.Type())
	}
	n, ok := i.Int64()
	if !ok {
		return 0, fmt.Errorf("%s out of range", name)
	}
	return n, nil
}

func parseStages(v starlark.Value) ([]StageConfig, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("stages must be a list of (duration_seconds, target) tuples")
	}
	iter := iterable.Iterate()
	defer iter.Done()

	var stages []StageConfig
	var elem starlark.Value
	for iter.Next(&elem) {
		tuple, ok := elem.(starlark.Tuple)
		if !ok || tuple.Len() != 2 {
			return nil, fmt.Errorf("each stage must be a (duration_seconds, target) tuple")
		}
		durSeconds, err := intValue(tuple[0], "stage duration")
		if err != nil {
			return nil, err
		}
		target, err := intValue(tuple[1], "stage target")
		if err != nil {
			return nil, err
		}
		stages = append(stages, StageConfig{
			Duration: time.Duration(durSeconds) * time.Second,
			Target:   int(target),
		})
	}
	return stages, nil
}
