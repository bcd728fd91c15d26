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

// Package progress owns the per-run progress state: a percent that only
// ever moves forward under a moving cap, rendered into localized frames
// and fanned out to every subscriber of the run. A single cooperative
// timer per run drives it; there is no global timer registry.
package progress

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"vindispatch/internal/dispatch/i18n"
	"vindispatch/internal/dispatch/inflight"
)

// Editor updates one subscriber's progress message in place.
type Editor interface {
	EditMessage(ctx context.Context, sub inflight.Subscriber, text string) error
}

// Header is the entitlement snapshot rendered above the bar. It is taken
// once at run start; the bar does not chase live counter changes.
type Header struct {
	MonthlyRemaining int64 // -1 renders as unlimited
	DailyUsed        int64
	DailyCap         int64 // 0 renders as unlimited
	DaysLeft         int
	Expired          bool
}

const (
	// DefaultCap bounds percent while the upstream fetch is running.
	DefaultCap = 80
	// DeliveryCap is the raised bound once delivery starts.
	DeliveryCap = 95

	barWidth = 10
)

// Runner drives the frames of one run. All methods are safe for
// concurrent use; Run is meant to live on the run's own goroutine.
type Runner struct {
	editor   Editor
	targets  func() []inflight.Subscriber
	clock    clockwork.Clock
	tick     time.Duration
	throttle time.Duration
	log      logrus.FieldLogger

	vin    string
	lang   string
	header Header

	mu          sync.Mutex
	percent     int
	cap         int
	lastEditAt  time.Time
	lastPercent int
	finished    bool

	// sendMu is taken while mu is still held, so frames reach the editor
	// in render order and a late tick can never overwrite the terminal frame.
	sendMu sync.Mutex

	done     chan struct{}
	doneOnce sync.Once
}

// NewRunner builds a runner for one (user, vin) run. targets is consulted
// on every frame so subscribers attaching mid-run start receiving edits.
func NewRunner(editor Editor, targets func() []inflight.Subscriber, vin, lang string, header Header, tick, throttle time.Duration, clock clockwork.Clock, log logrus.FieldLogger) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	if throttle <= 0 {
		throttle = 5 * time.Second
	}
	return &Runner{
		editor:      editor,
		targets:     targets,
		clock:       clock,
		tick:        tick,
		throttle:    throttle,
		log:         log,
		vin:         strings.ToUpper(vin),
		lang:        lang,
		header:      header,
		cap:         DefaultCap,
		lastPercent: -1,
		done:        make(chan struct{}),
	}
}

// Run ticks until the run finishes or ctx is cancelled. The first frame
// is pushed immediately so subscribers see the bar without waiting a tick.
func (r *Runner) Run(ctx context.Context) {
	r.Step(ctx)
	ticker := r.clock.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.Chan():
			r.Step(ctx)
		}
	}
}

// Step advances percent by one increment and pushes a frame if the edit
// throttle allows. Exposed so tests can drive the runner without a timer.
func (r *Runner) Step(ctx context.Context) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	step := 5
	if r.cap > DefaultCap {
		step = 3
	}
	if next := r.percent + step; next <= r.cap {
		r.percent = next
	} else {
		r.percent = r.cap
	}
	now := r.clock.Now()
	changed := r.percent != r.lastPercent
	due := now.Sub(r.lastEditAt) >= r.throttle
	if !changed && !due {
		r.mu.Unlock()
		return
	}
	r.lastPercent = r.percent
	r.lastEditAt = now
	frame := r.renderLocked(r.percent, "")
	r.sendMu.Lock()
	r.mu.Unlock()

	r.fanout(ctx, frame)
	r.sendMu.Unlock()
}

// RaiseCap lifts the percent ceiling (never lowers it).
func (r *Runner) RaiseCap(cap int) {
	r.mu.Lock()
	if cap > r.cap {
		r.cap = cap
	}
	r.mu.Unlock()
}

// Percent reports the current percent value.
func (r *Runner) Percent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

// Finish stops the timer loop and pushes the terminal frame: percent 100
// with the given note. The throttle does not apply to the terminal frame.
func (r *Runner) Finish(ctx context.Context, note string) {
	r.doneOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.percent = 100
	frame := r.renderLocked(100, note)
	r.sendMu.Lock()
	r.mu.Unlock()

	r.fanout(ctx, frame)
	r.sendMu.Unlock()
}

// renderLocked builds one textual frame. Caller holds r.mu.
func (r *Runner) renderLocked(percent int, note string) string {
	var b strings.Builder
	b.WriteString(i18n.T(r.lang, i18n.ProgressTitle, r.vin))
	b.WriteByte('\n')
	b.WriteString(renderHeader(r.lang, r.header))
	b.WriteByte('\n')
	b.WriteString(renderBar(percent))
	if note != "" {
		b.WriteByte('\n')
		b.WriteString(note)
	}
	return b.String()
}

func (r *Runner) fanout(ctx context.Context, frame string) {
	for _, sub := range r.targets() {
		if err := r.editor.EditMessage(ctx, sub, frame); err != nil {
			// One broken subscriber must not take the run down.
			r.log.WithError(err).WithFields(logrus.Fields{
				"chat": sub.ChatID, "message": sub.MessageID,
			}).Warn("progress edit failed")
		}
	}
}
