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

package fetch

import "github.com/prometheus/client_golang/prometheus"

var (
	fetchOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_fetch_outcomes_total",
		Help: "Terminal fetch outcomes by classified kind (success included)",
	}, []string{"outcome"})

	fetchAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_fetch_attempts",
		Help:    "Upstream attempts consumed per fetch",
		Buckets: []float64{1, 2, 3, 4, 5, 6},
	})
)

func init() {
	prometheus.MustRegister(fetchOutcomesTotal, fetchAttempts)
}

func observeFetch(attempts int, outcome string) {
	fetchAttempts.Observe(float64(attempts))
	fetchOutcomesTotal.WithLabelValues(outcome).Inc()
}
