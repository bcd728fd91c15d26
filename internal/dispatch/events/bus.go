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

// Package events publishes report lifecycle events to in-process
// observers. Publishing never blocks: each subscriber owns a buffered
// channel and loses events when it lags, which is the right trade for
// dashboard-grade consumers.
package events

import (
	"sync"
	"time"
)

// Kind enumerates the lifecycle events the engine emits.
type Kind string

const (
	ReportRequested Kind = "report_requested"
	ReportAdmitted  Kind = "report_admitted"
	ReportSucceeded Kind = "report_succeeded"
	ReportFailed    Kind = "report_failed"
	ReportRefunded  Kind = "report_refunded"
	LimitReached    Kind = "limit_reached"
)

// Event is one append-only lifecycle record. Payload carries the
// kind-specific extras: remaining credit on success, failure reason,
// limit kind on LimitReached.
type Event struct {
	TS      time.Time
	Kind    Kind
	UserID  int64
	VIN     string
	Payload map[string]string
}

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a consumer with the given buffer size and returns
// its channel plus a cancel function. Cancel closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to every subscriber that has buffer room and counts
// it in the process metrics. Slow subscribers are skipped, never waited on.
func (b *Bus) Publish(e Event) {
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	observe(e)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			droppedEventsTotal.Inc()
		}
	}
}
