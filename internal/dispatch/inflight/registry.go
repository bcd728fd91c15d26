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

// Package inflight tracks which (user, VIN) runs are currently in
// progress so genuinely equal requests submitted in quick succession
// coalesce into a single upstream fetch. The first submission becomes the
// primary and drives the work; later ones merely attach their progress
// message to the existing run.
package inflight

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Subscriber identifies one progress message to keep updated.
type Subscriber struct {
	ChatID    int64
	MessageID int64
}

type key struct {
	userID int64
	vin    string
}

type entry struct {
	firstSeen   time.Time
	subscribers []Subscriber
}

// Registry is the in-flight map. A single coarse mutex is deliberate:
// contention is bounded by the admission gate sitting right behind it.
type Registry struct {
	mu      sync.Mutex
	entries map[key]*entry
	ttl     time.Duration
	clock   clockwork.Clock
}

// New returns a registry evicting entries older than ttl.
func New(ttl time.Duration, clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = 900 * time.Second
	}
	return &Registry{
		entries: make(map[key]*entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Register records sub as interested in (user, vin) and reports whether
// the caller created the entry and therefore drives the run. Stale
// entries are pruned before the lookup, so a run whose owner vanished
// (crash, missed unregister) does not absorb subscribers forever.
func (r *Registry) Register(userID int64, vin string, sub Subscriber) (primary bool) {
	k := key{userID: userID, vin: strings.ToUpper(vin)}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	e, ok := r.entries[k]
	if !ok {
		r.entries[k] = &entry{
			firstSeen:   r.clock.Now(),
			subscribers: []Subscriber{sub},
		}
		return true
	}
	for _, s := range e.subscribers {
		if s == sub {
			return false
		}
	}
	e.subscribers = append(e.subscribers, sub)
	return false
}

// Attach adds a subscriber to an existing run without ever creating one.
// It reports whether a run was found.
func (r *Registry) Attach(userID int64, vin string, sub Subscriber) bool {
	k := key{userID: userID, vin: strings.ToUpper(vin)}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	e, ok := r.entries[k]
	if !ok {
		return false
	}
	for _, s := range e.subscribers {
		if s == sub {
			return true
		}
	}
	e.subscribers = append(e.subscribers, sub)
	return true
}

// Targets returns a snapshot of the subscriber set for fan-out. The
// snapshot is safe to iterate while new subscribers keep attaching.
func (r *Registry) Targets(userID int64, vin string) []Subscriber {
	k := key{userID: userID, vin: strings.ToUpper(vin)}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	e, ok := r.entries[k]
	if !ok {
		return nil
	}
	out := make([]Subscriber, len(e.subscribers))
	copy(out, e.subscribers)
	return out
}

// Unregister drops the entry at the end of a run.
func (r *Registry) Unregister(userID int64, vin string) {
	k := key{userID: userID, vin: strings.ToUpper(vin)}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, k)
}

// Len reports the number of live entries after pruning.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	return len(r.entries)
}

func (r *Registry) pruneLocked() {
	cutoff := r.clock.Now().Add(-r.ttl)
	for k, e := range r.entries {
		if e.firstSeen.Before(cutoff) {
			delete(r.entries, k)
		}
	}
}
