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

// Package engine is the report dispatcher: it authorizes a submission
// against the entitlement ledger, reserves credit, coalesces duplicate
// requests, schedules the run through the admission gate, drives the
// progress channel and the upstream fetch, delivers the PDF, and
// finalizes accounting as commit or refund. Chat adapters sit on top of
// this API; the engine knows nothing about any particular chat platform.
package engine

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"vindispatch/internal/dispatch/config"
	"vindispatch/internal/dispatch/events"
	"vindispatch/internal/dispatch/fetch"
	"vindispatch/internal/dispatch/fingerprint"
	"vindispatch/internal/dispatch/gate"
	"vindispatch/internal/dispatch/i18n"
	"vindispatch/internal/dispatch/inflight"
	"vindispatch/internal/dispatch/ledger"
)

// vinPattern is the 17-character VIN grammar; I, O and Q are excluded.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// Job is one submission from a chat adapter. ChatID/MessageID identify
// the progress message the adapter already posted for this submission.
type Job struct {
	Channel   string
	UserID    int64
	VIN       string
	Language  string
	Options   map[string]string
	ClientKey string

	ChatID      int64
	MessageID   int64
	SubmittedAt time.Time
}

// AckStatus tells the adapter what happened to its submission.
type AckStatus string

const (
	// AckRegistered: this submission created the run and drives the work.
	AckRegistered AckStatus = "registered"
	// AckAttached: an equal run was in flight; the subscriber was attached.
	AckAttached AckStatus = "attached"
	// AckRejected: refused before any accounting; Message says why.
	AckRejected AckStatus = "rejected"
	// AckDuplicate: the request id was already finalized earlier.
	AckDuplicate AckStatus = "duplicate"
)

// Ack is the immediate answer to Submit.
type Ack struct {
	Status    AckStatus
	RequestID string
	Message   string // localized, set when Status is AckRejected
}

// Deliverer is the channel-specific side the adapter provides: editing
// the progress message and sending the final PDF document.
type Deliverer interface {
	EditMessage(ctx context.Context, sub inflight.Subscriber, text string) error
	SendDocument(ctx context.Context, sub inflight.Subscriber, filename string, pdf []byte) error
}

// Engine wires the dispatch components together. One instance per
// process, created at startup and injected into adapters.
type Engine struct {
	cfg       config.Config
	ledger    *ledger.Ledger
	registry  *inflight.Registry
	gate      *gate.Gate
	fetcher   *fetch.Fetcher
	bus       *events.Bus
	deliverer Deliverer
	clock     clockwork.Clock
	log       logrus.FieldLogger

	wg sync.WaitGroup
}

// New assembles an engine from its parts. cfg must already be normalized.
func New(cfg config.Config, led *ledger.Ledger, reg *inflight.Registry, g *gate.Gate, f *fetch.Fetcher, bus *events.Bus, del Deliverer, clock clockwork.Clock, log logrus.FieldLogger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		cfg:       cfg,
		ledger:    led,
		registry:  reg,
		gate:      g,
		fetcher:   f,
		bus:       bus,
		deliverer: del,
		clock:     clock,
		log:       log,
	}
}

// Submit runs the pre-flight part of the lifecycle synchronously
// (validate, authorize, reserve, register) and starts the run in the
// background when this submission is the primary. The returned Ack is
// immediate; progress and the final document arrive via the Deliverer.
func (e *Engine) Submit(ctx context.Context, job Job) (Ack, error) {
	vin := strings.ToUpper(strings.TrimSpace(job.VIN))
	lang := e.language(job.Language)
	sub := inflight.Subscriber{ChatID: job.ChatID, MessageID: job.MessageID}

	user, err := e.ledger.GetOrCreate(ctx, job.UserID, lang)
	if err != nil {
		return Ack{}, err
	}
	if job.Language == "" && user.Language != "" {
		lang = e.language(user.Language)
	}

	if !vinPattern.MatchString(vin) {
		return Ack{Status: AckRejected, Message: i18n.T(lang, i18n.ErrBadVIN)}, nil
	}

	e.bus.Publish(events.Event{
		Kind: events.ReportRequested, UserID: job.UserID, VIN: vin, TS: e.clock.Now(),
	})

	// Received -> Authorized. Rejections here cost the user nothing.
	if err := e.ledger.Authorize(ctx, job.UserID); err != nil {
		return e.reject(job.UserID, vin, lang, err)
	}

	// Authorized -> Reserved.
	rid := fingerprint.ID(fingerprint.Request{
		Channel:   job.Channel,
		UserID:    job.UserID,
		VIN:       vin,
		Language:  lang,
		Options:   job.Options,
		ClientKey: job.ClientKey,
	})
	state, freshCharge, err := e.ledger.Reserve(ctx, job.UserID, rid)
	if err != nil {
		return e.reject(job.UserID, vin, lang, err)
	}
	if state.Terminal() {
		// Same request id already ran to completion; never charge twice.
		return Ack{Status: AckDuplicate, RequestID: rid}, nil
	}

	// Reserved -> Admitted: exactly one concurrent equal submission
	// becomes the primary; everyone else rides along.
	primary := e.registry.Register(job.UserID, vin, sub)
	if !primary {
		if freshCharge {
			// Distinct request id coalesced onto an existing run: the run
			// will finalize its own reservation, so return this one now.
			if err := e.ledger.Refund(ctx, rid); err != nil {
				e.log.WithError(err).WithField("rid", rid).Error("refund of coalesced reservation failed")
			}
		}
		return Ack{Status: AckAttached, RequestID: rid}, nil
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(job, rid, vin, lang)
	}()
	return Ack{Status: AckRegistered, RequestID: rid}, nil
}

// Subscribe attaches a late subscriber to an in-flight run, if one
// exists. It never starts a run.
func (e *Engine) Subscribe(userID int64, vin string, sub inflight.Subscriber) bool {
	return e.registry.Attach(userID, strings.ToUpper(vin), sub)
}

// GetSnapshot returns the read-only entitlement header for a user.
func (e *Engine) GetSnapshot(ctx context.Context, userID int64) (ledger.Snapshot, error) {
	return e.ledger.Snapshot(ctx, userID)
}

// Events exposes the lifecycle bus for observability consumers.
func (e *Engine) Events() *events.Bus { return e.bus }

// Close waits for in-flight runs to finish. New submissions during
// shutdown still start; callers stop their adapters first.
func (e *Engine) Close() {
	e.wg.Wait()
}

func (e *Engine) language(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if e.cfg.SupportedLanguages[lang] {
		return lang
	}
	return e.cfg.DefaultLanguage
}

// reject maps an authorization error to a localized Ack and the
// corresponding events. No accounting has happened on this path.
func (e *Engine) reject(userID int64, vin, lang string, err error) (Ack, error) {
	var key i18n.Key
	switch {
	case errors.Is(err, ledger.ErrNotActive):
		key = i18n.ErrNotActive
	case errors.Is(err, ledger.ErrExpired):
		key = i18n.ErrExpired
	case errors.Is(err, ledger.ErrDailyLimit):
		key = i18n.ErrDailyLimit
		e.publishLimit(userID, vin, "daily")
	case errors.Is(err, ledger.ErrMonthlyLimit):
		key = i18n.ErrMonthlyLimit
		e.publishLimit(userID, vin, "monthly")
	case errors.Is(err, ledger.ErrUserNotFound):
		key = i18n.ErrNotActive
	default:
		return Ack{}, err
	}
	return Ack{Status: AckRejected, Message: i18n.T(lang, key)}, nil
}

func (e *Engine) publishLimit(userID int64, vin, kind string) {
	e.bus.Publish(events.Event{
		Kind:    events.LimitReached,
		UserID:  userID,
		VIN:     vin,
		TS:      e.clock.Now(),
		Payload: map[string]string{"limit": kind},
	})
}
