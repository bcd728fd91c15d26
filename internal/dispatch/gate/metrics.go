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

package gate

import "github.com/prometheus/client_golang/prometheus"

var (
	waitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_gate_wait_seconds",
		Help:    "Time spent waiting for admission permits before a run starts",
		Buckets: []float64{.005, .05, .25, 1, 5, 15, 60, 120},
	})

	acquireAborts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_gate_aborted_waits_total",
		Help: "Admission waits abandoned because the run deadline expired first",
	})
)

func init() {
	prometheus.MustRegister(waitSeconds, acquireAborts)
}
