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
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// maxIdleConn matches the teacher's per-host idle connection pool size,
// sized for many concurrent VUs sharing one transport.
const maxIdleConn = 500

// Client is the HTTP contract a VirtualUser drives: get(url) -> (status,
// err). Latency is measured by the caller around the full call so it
// includes transport setup, matching spec.md §4.4.
type Client interface {
	Get(ctx context.Context, url string) (status int, err error)
}

// ClientOptions configures the default Client implementation.
type ClientOptions struct {
	H2                 bool
	DisableCompression bool
	DisableKeepAlives  bool
	InsecureSkipVerify bool
	Timeout            time.Duration
	UserAgent          string
}

type httpClient struct {
	c         *http.Client
	userAgent string
}

// NewClient builds the default Client: one shared *http.Transport (so
// connection pooling is shared across every VU that uses it), optionally
// upgraded to HTTP/2.
func NewClient(opts ClientOptions) (Client, error) {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
		MaxIdleConnsPerHost: maxIdleConn,
		DisableCompression:  opts.DisableCompression,
		DisableKeepAlives:   opts.DisableKeepAlives,
	}
	if opts.H2 {
		if err := http2.ConfigureTransport(tr); err != nil {
			return nil, fmt.Errorf("http2.ConfigureTransport: %w", err)
		}
	} else {
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)
	}

	return &httpClient{c: &http.Client{Transport: tr, Timeout: opts.Timeout}, userAgent: opts.UserAgent}, nil
}

// Get issues a GET request. The context is attached to the request so a
// VU's forcible cancellation interrupts the in-flight read.
func (h *httpClient) Get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
