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

// Run lifecycle of the dispatcher: Admitted -> Running -> Delivering ->
// Finalized, with every failure path ending in refund + unregister +
// permit release + terminal frame. Errors never escape the run goroutine.
package engine

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vindispatch/internal/dispatch/events"
	"vindispatch/internal/dispatch/fetch"
	"vindispatch/internal/dispatch/i18n"
	"vindispatch/internal/dispatch/inflight"
	"vindispatch/internal/dispatch/ledger"
	"vindispatch/internal/dispatch/progress"
)

// finalizeGrace bounds the work done after the run budget is spent:
// refund, terminal frame edits, event publishing.
const finalizeGrace = 15 * time.Second

// kindDelivery marks a run that produced a PDF but could not hand it to
// any subscriber.
const kindDelivery fetch.Kind = "delivery_failed"

func (e *Engine) run(job Job, rid, vin, lang string) {
	runID := uuid.NewString()[:8]
	log := e.log.WithFields(logrus.Fields{
		"run": runID, "rid": rid, "user": job.UserID, "vin": vin,
	})

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.TotalDeadline)
	defer cancel()
	defer e.registry.Unregister(job.UserID, vin)

	sub := inflight.Subscriber{ChatID: job.ChatID, MessageID: job.MessageID}

	defer func() {
		if rec := recover(); rec != nil {
			// A panic is an internal error: refund, tell the user
			// something generic, keep the diagnostics in the logs.
			log.WithField("panic", rec).Error("run panicked")
			e.failRun(job, rid, vin, lang, nil, sub, fetch.KindUnknown, "", log)
		}
	}()

	// Admitted -> Running: the gate is the back-pressure mechanism; a
	// queued run waits here against its own deadline.
	release, err := e.gate.Acquire(ctx, job.UserID)
	if err != nil {
		log.WithError(err).Warn("admission wait aborted")
		e.failRun(job, rid, vin, lang, nil, sub, fetch.KindTimeout, "", log)
		return
	}
	defer release()

	e.bus.Publish(events.Event{
		Kind: events.ReportAdmitted, UserID: job.UserID, VIN: vin, TS: e.clock.Now(),
	})

	snap, err := e.ledger.Snapshot(ctx, job.UserID)
	if err != nil {
		log.WithError(err).Error("snapshot for progress header failed")
	}
	runner := progress.NewRunner(
		e.deliverer,
		func() []inflight.Subscriber { return e.registry.Targets(job.UserID, vin) },
		vin, lang, headerFrom(snap),
		e.cfg.ProgressTick, e.cfg.EditThrottle,
		e.clock, log,
	)
	go runner.Run(ctx)

	res := e.fetcher.Fetch(ctx, vin, lang)
	if !res.Success {
		log.WithFields(logrus.Fields{"kind": res.Kind, "attempts": res.Attempts}).Warn("fetch failed")
		e.failRun(job, rid, vin, lang, runner, sub, res.Kind, res.UserMessage, log)
		return
	}

	// Running -> Delivering.
	runner.RaiseCap(progress.DeliveryCap)
	delivered := e.deliver(ctx, job.UserID, vin, res, log)
	if delivered == 0 {
		kind := kindDelivery
		if ctx.Err() != nil {
			kind = fetch.KindTimeout
		}
		e.failRun(job, rid, vin, lang, runner, sub, kind, "", log)
		return
	}

	// Delivering -> Finalized. Partial delivery still commits; the
	// subscribers that failed were already logged by deliver.
	fctx, fcancel := context.WithTimeout(context.Background(), finalizeGrace)
	defer fcancel()

	if err := e.ledger.Commit(fctx, rid); err != nil {
		log.WithError(err).Error("commit failed")
	}
	remaining := int64(-1)
	if s, err := e.ledger.Snapshot(fctx, job.UserID); err == nil {
		remaining = s.MonthlyRemaining
	}
	e.bus.Publish(events.Event{
		Kind: events.ReportSucceeded, UserID: job.UserID, VIN: vin, TS: e.clock.Now(),
		Payload: map[string]string{"remaining": strconv.FormatInt(remaining, 10)},
	})
	runner.Finish(fctx, i18n.T(lang, i18n.ResultSuccess))
	log.WithField("attempts", res.Attempts).Info("report delivered")
}

// deliver sends the PDF to every current subscriber under the delivery
// retry schedule. Subscriber failures are independent; the run succeeds
// if at least one target received the document.
func (e *Engine) deliver(ctx context.Context, userID int64, vin string, res fetch.Result, log logrus.FieldLogger) int {
	delivered := 0
	for _, target := range e.registry.Targets(userID, vin) {
		if e.deliverOne(ctx, target, res, log) {
			delivered++
		}
		if ctx.Err() != nil {
			break
		}
	}
	return delivered
}

func (e *Engine) deliverOne(ctx context.Context, target inflight.Subscriber, res fetch.Result, log logrus.FieldLogger) bool {
	for attempt := 1; attempt <= e.cfg.DeliveryRetries; attempt++ {
		if delay := e.cfg.Backoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-e.clock.After(delay):
			}
		}
		// Per-attempt deadline: the send timeout, clamped implicitly to
		// the remaining run budget through ctx.
		sctx, cancel := context.WithTimeout(ctx, e.cfg.SendDeadline)
		err := e.deliverer.SendDocument(sctx, target, res.Filename, res.PDF)
		cancel()
		if err == nil {
			return true
		}
		log.WithError(err).WithFields(logrus.Fields{
			"chat": target.ChatID, "attempt": attempt,
		}).Warn("delivery attempt failed")
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// failRun is the single refund path: every non-success terminal goes
// through here so accounting, events and the terminal frame stay in step.
func (e *Engine) failRun(job Job, rid, vin, lang string, runner *progress.Runner, sub inflight.Subscriber, kind fetch.Kind, userMessage string, log logrus.FieldLogger) {
	fctx, cancel := context.WithTimeout(context.Background(), finalizeGrace)
	defer cancel()

	if err := e.ledger.Refund(fctx, rid); err != nil && !errors.Is(err, ledger.ErrAlreadyFinalized) {
		log.WithError(err).Error("refund failed")
	}

	now := e.clock.Now()
	e.bus.Publish(events.Event{
		Kind: events.ReportFailed, UserID: job.UserID, VIN: vin, TS: now,
		Payload: map[string]string{"reason": string(kind)},
	})
	e.bus.Publish(events.Event{
		Kind: events.ReportRefunded, UserID: job.UserID, VIN: vin, TS: now,
	})

	note := i18n.T(lang, i18n.ResultRefunded, failureMessage(lang, kind, userMessage))
	if runner != nil {
		runner.Finish(fctx, note)
		return
	}
	// The run never got far enough to own a progress channel; edit the
	// submitter's message directly.
	if err := e.deliverer.EditMessage(fctx, sub, note); err != nil {
		log.WithError(err).Warn("terminal edit failed")
	}
}

// failureMessage picks the precise localized reason when we have one and
// a generic fetch failure otherwise. An explicit upstream user message
// wins over everything.
func failureMessage(lang string, kind fetch.Kind, userMessage string) string {
	if userMessage != "" {
		return userMessage
	}
	switch kind {
	case fetch.KindTimeout:
		return i18n.T(lang, i18n.ErrTimeout)
	case fetch.KindUnauthorized:
		return i18n.T(lang, i18n.ErrUnauthorized)
	case fetch.KindInvalidVIN:
		return i18n.T(lang, i18n.ErrInvalidVIN)
	case kindDelivery:
		return i18n.T(lang, i18n.ErrDeliveryFailed)
	default:
		return i18n.T(lang, i18n.ErrFetchFailed)
	}
}

func headerFrom(s ledger.Snapshot) progress.Header {
	return progress.Header{
		MonthlyRemaining: s.MonthlyRemaining,
		DailyUsed:        s.DailyUsed,
		DailyCap:         s.DailyCap,
		DaysLeft:         s.DaysLeft,
		Expired:          s.Expired,
	}
}
