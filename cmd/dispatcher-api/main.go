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

// Package main runs the VIN report dispatch engine behind the HTTP
// adapter. It wires the durable store (memory or Redis), the upstream
// provider client, the admission gate, the event bus and the Prometheus
// endpoint, and shuts the whole thing down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"vindispatch/internal/dispatch/api"
	"vindispatch/internal/dispatch/config"
	"vindispatch/internal/dispatch/engine"
	"vindispatch/internal/dispatch/events"
	"vindispatch/internal/dispatch/fetch"
	"vindispatch/internal/dispatch/gate"
	"vindispatch/internal/dispatch/inflight"
	"vindispatch/internal/dispatch/ledger"
)

func main() {
	httpAddr := flag.String("http_addr", ":8080", "HTTP listen address for the adapter (e.g., :8080)")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	redisAddr := flag.String("redis_addr", "", "Redis address for the durable store; empty selects the in-memory store")
	upstreamURL := flag.String("upstream_url", "", "Base URL of the report provider; empty selects a canned demo upstream")
	upstreamToken := flag.String("upstream_token", "", "Bearer token for the report provider")
	logLevel := flag.String("log_level", "info", "logrus level: debug, info, warn, error")
	flag.Parse()

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}

	cfg := config.FromEnv()
	clock := clockwork.NewRealClock()

	var store ledger.Store
	if *redisAddr != "" {
		store = ledger.DialRedisStore(*redisAddr, 0)
		log.WithField("addr", *redisAddr).Info("using redis store")
	} else {
		store = ledger.NewMemoryStore()
		log.Warn("using in-memory store; accounting will not survive a restart")
	}

	var upstream fetch.Upstream
	if *upstreamURL != "" {
		upstream = fetch.NewHTTPUpstream(*upstreamURL, *upstreamToken)
	} else {
		upstream = demoUpstream{}
		log.Warn("no upstream_url configured; serving canned demo PDFs")
	}

	led := ledger.New(store, clock, log)
	reg := inflight.New(cfg.InflightTTL, clock)
	g := gate.New(cfg.PerUserConcurrency, cfg.GlobalConcurrency)
	fetcher := fetch.New(upstream, cfg.GenerateRetries, cfg.SendDeadline, cfg.Backoff, clock, log)
	bus := events.NewBus()

	eng := engine.New(cfg, led, reg, g, fetcher, bus, consoleDeliverer{}, clock, log)

	// Dashboard-style consumer: mirror lifecycle events into the log.
	evCh, evCancel := bus.Subscribe(256)
	go func() {
		for e := range evCh {
			log.WithFields(logrus.Fields{
				"kind": e.Kind, "user": e.UserID, "vin": e.VIN, "payload": e.Payload,
			}).Debug("event")
		}
	}()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.WithField("addr", *metricsAddr).Info("metrics endpoint up")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	srv := api.NewServer(eng)
	go func() {
		log.WithField("addr", *httpAddr).Info("dispatch adapter listening")
		if err := srv.ListenAndServe(*httpAddr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down; draining in-flight runs")
	done := make(chan struct{})
	go func() {
		eng.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("drain timed out; exiting with runs in flight")
	}
	evCancel()
	log.Info("bye")
}

// consoleDeliverer is the demo stand-in for a chat adapter: progress
// edits and document sends go to stdout. Real deployments provide a
// platform-specific Deliverer instead.
type consoleDeliverer struct{}

func (consoleDeliverer) EditMessage(ctx context.Context, sub inflight.Subscriber, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	fmt.Printf("[edit chat=%d msg=%d]\n%s\n", sub.ChatID, sub.MessageID, text)
	return nil
}

func (consoleDeliverer) SendDocument(ctx context.Context, sub inflight.Subscriber, filename string, pdf []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	fmt.Printf("[send chat=%d] %s (%d bytes)\n", sub.ChatID, filename, len(pdf))
	return nil
}

// demoUpstream returns a tiny canned PDF for any VIN so the demo loop
// works without provider credentials.
type demoUpstream struct{}

func (demoUpstream) Generate(ctx context.Context, vin, language string) (fetch.Response, error) {
	select {
	case <-ctx.Done():
		return fetch.Response{}, ctx.Err()
	default:
	}
	body := []byte("%PDF-1.4 demo report " + vin + "\n%%EOF\n")
	return fetch.Response{Status: 200, ContentType: "application/pdf", Body: body}, nil
}
