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

// Prometheus counters for the dispatch lifecycle. Metrics are global and
// label only on the event kind (and failure reason) to keep cardinality
// bounded; user ids never become labels.
package events

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_events_total",
		Help: "Lifecycle events emitted by the report dispatch engine, by kind",
	}, []string{"kind"})

	failuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_failures_total",
		Help: "Failed report runs by classified reason",
	}, []string{"reason"})

	limitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_limits_reached_total",
		Help: "Submissions rejected at authorization, by limit kind",
	}, []string{"limit"})

	droppedEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_bus_dropped_events_total",
		Help: "Events dropped because a subscriber buffer was full",
	})
)

func init() {
	// Register eagerly. Harmless if no /metrics endpoint is ever exposed.
	prometheus.MustRegister(eventsTotal, failuresTotal, limitsTotal, droppedEventsTotal)
}

func observe(e Event) {
	eventsTotal.WithLabelValues(string(e.Kind)).Inc()
	switch e.Kind {
	case ReportFailed:
		failuresTotal.WithLabelValues(e.Payload["reason"]).Inc()
	case LimitReached:
		limitsTotal.WithLabelValues(e.Payload["limit"]).Inc()
	}
}
