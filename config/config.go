// Copyright 2019 The hithere Authors. All rights reserved.
// Use of this source code is governed by the Apache License,
// Version 2.0, that can be found in the LICENSE file.

// Package config loads a load-test plan from a flat YAML file, for users
// who want static configuration instead of the Starlark DSL in package
// script. Both loaders produce the same script.PlanConfig.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/bpowers/vuload/script"
)

type stageDoc struct {
	DurationSeconds int `yaml:"duration_seconds"`
	Target          int `yaml:"target"`
}

type planDoc struct {
	URL                string     `yaml:"url"`
	RPSWindowSizeMs    int        `yaml:"rps_window_size_ms"`
	GracefulShutdownMs int        `yaml:"graceful_shutdown_ms"`
	Stages             []stageDoc `yaml:"stages"`

	H2               bool   `yaml:"h2"`
	TimeoutMs        int    `yaml:"timeout_ms"`
	UserAgent        string `yaml:"user_agent"`
	DisableKeepAlive bool   `yaml:"disable_keepalive"`
}

// Load reads a YAML document of the shape:
//
//	url: http://localhost:8080/
//	rps_window_size_ms: 1000
//	graceful_shutdown_ms: 0
//	h2: false
//	timeout_ms: 20000
//	user_agent: "load-test/1"
//	disable_keepalive: false
//	stages:
//	  - duration_seconds: 10
//	    target: 50
//	  - duration_seconds: 30
//	    target: 50
//	  - duration_seconds: 10
//	    target: 0
func Load(path string) (script.PlanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return script.PlanConfig{}, fmt.Errorf("config.Load(%s): %w", path, err)
	}

	var doc planDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return script.PlanConfig{}, fmt.Errorf("config.Load(%s): %w", path, err)
	}

	if doc.URL == "" {
		return script.PlanConfig{}, fmt.Errorf("config.Load(%s): missing required field %q", path, "url")
	}
	if len(doc.Stages) == 0 {
		return script.PlanConfig{}, fmt.Errorf("config.Load(%s): missing required field %q", path, "stages")
	}

	cfg := script.PlanConfig{
		URL:              doc.URL,
		RPSWindowSize:    time.Second,
		GracefulShutdown: time.Duration(doc.GracefulShutdownMs) * time.Millisecond,
		H2:               doc.H2,
		Timeout:          time.Duration(doc.TimeoutMs) * time.Millisecond,
		UserAgent:        doc.UserAgent,
		DisableKeepAlive: doc.DisableKeepAlive,
	}
	if doc.RPSWindowSizeMs > 0 {
		cfg.RPSWindowSize = time.Duration(doc.RPSWindowSizeMs) * time.Millisecond
	}

	for _, s := range doc.Stages {
		cfg.Stages = append(cfg.Stages, script.StageConfig{
			Duration: time.Duration(s.DurationSeconds) * time.Second,
			Target:   s.Target,
		})
	}

	return cfg, nil
}
