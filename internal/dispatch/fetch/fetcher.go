// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fetch drives the upstream report provider: bounded attempts,
// a capped backoff schedule, per-attempt deadlines clamped to the run
// budget, and a classifier that turns raw responses into tagged results.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Response is the HTTP-like shape the classifier consumes.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Upstream abstracts the provider call. Implementations may wrap a real
// HTTP endpoint or a scripted double in tests.
type Upstream interface {
	Generate(ctx context.Context, vin, language string) (Response, error)
}

// Result is what a run produces. Success implies PDF is non-empty.
type Result struct {
	Success     bool
	PDF         []byte
	Filename    string
	Kind        Kind
	UserMessage string
	RawStatus   int
	Attempts    int
}

// Fetcher retries transient failures up to the configured attempt count.
type Fetcher struct {
	upstream       Upstream
	attempts       int
	backoff        func(attempt int) time.Duration
	attemptTimeout time.Duration
	clock          clockwork.Clock
	log            logrus.FieldLogger
}

// New builds a fetcher. backoff maps a 1-based attempt number to the
// delay applied before that attempt; nil means no delays.
func New(upstream Upstream, attempts int, attemptTimeout time.Duration, backoff func(int) time.Duration, clock clockwork.Clock, log logrus.FieldLogger) *Fetcher {
	if attempts < 1 {
		attempts = 1
	}
	if backoff == nil {
		backoff = func(int) time.Duration { return 0 }
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{
		upstream:       upstream,
		attempts:       attempts,
		backoff:        backoff,
		attemptTimeout: attemptTimeout,
		clock:          clock,
		log:            log,
	}
}

// Fetch runs the attempt loop until success, a permanent failure, attempt
// exhaustion, or expiry of ctx (the total run deadline).
func (f *Fetcher) Fetch(ctx context.Context, vin, language string) Result {
	var last verdict
	last.kind = KindUnknown

	for attempt := 1; attempt <= f.attempts; attempt++ {
		if delay := f.backoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return f.timeoutResult(attempt - 1)
			case <-f.clock.After(delay):
			}
		}
		if ctx.Err() != nil {
			return f.timeoutResult(attempt - 1)
		}

		actx, cancel := f.attemptContext(ctx)
		resp, err := f.upstream.Generate(actx, vin, language)
		cancel()

		v := classify(resp, err)
		if v.success {
			observeFetch(attempt, "success")
			return Result{
				Success:   true,
				PDF:       resp.Body,
				Filename:  strings.ToUpper(vin) + ".pdf",
				RawStatus: resp.Status,
				Attempts:  attempt,
			}
		}

		f.log.WithFields(logrus.Fields{
			"vin": vin, "attempt": attempt, "kind": v.kind,
			"status": resp.Status, "transient": v.transient,
		}).Warn("upstream attempt failed")

		if !v.transient {
			observeFetch(attempt, string(v.kind))
			return Result{
				Kind:        v.kind,
				UserMessage: v.userMessage,
				RawStatus:   resp.Status,
				Attempts:    attempt,
			}
		}
		last = v

		if ctx.Err() != nil {
			return f.timeoutResult(attempt)
		}
	}

	observeFetch(f.attempts, string(last.kind))
	return Result{
		Kind:        last.kind,
		UserMessage: last.userMessage,
		Attempts:    f.attempts,
	}
}

// attemptContext bounds one attempt by min(remaining budget, send timeout).
func (f *Fetcher) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.attemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.attemptTimeout)
}

func (f *Fetcher) timeoutResult(attempts int) Result {
	observeFetch(attempts, string(KindTimeout))
	return Result{Kind: KindTimeout, Attempts: attempts}
}

// HTTPUpstream calls a real provider endpoint:
// GET {base}/report?vin=...&lang=... with a bearer token.
type HTTPUpstream struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPUpstream builds the production upstream. The client carries no
// timeout of its own; attempts are bounded by the fetcher's contexts.
func NewHTTPUpstream(base, token string) *HTTPUpstream {
	return &HTTPUpstream{base: strings.TrimRight(base, "/"), token: token, client: &http.Client{}}
}

func (h *HTTPUpstream) Generate(ctx context.Context, vin, language string) (Response, error) {
	q := url.Values{}
	q.Set("vin", strings.ToUpper(vin))
	q.Set("lang", strings.ToLower(language))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/report?"+q.Encode(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("build upstream request: %w", err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read upstream body: %w", err)
	}
	return Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
