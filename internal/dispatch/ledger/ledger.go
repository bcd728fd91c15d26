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

package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Ledger serializes all entitlement mutation per user and drives the
// reservation journal. It owns the counters exclusively; nothing else in
// the process writes User rows.
type Ledger struct {
	store Store
	clock clockwork.Clock
	log   logrus.FieldLogger

	// locks holds one mutex per user id. Fast path is a plain Load so the
	// common case allocates nothing (same discipline as a keyed VSA store).
	locks sync.Map // int64 -> *sync.Mutex
}

// New returns a ledger over the given durable store.
func New(store Store, clock clockwork.Clock, log logrus.FieldLogger) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{store: store, clock: clock, log: log}
}

func (l *Ledger) lockFor(userID int64) *sync.Mutex {
	if m, ok := l.locks.Load(userID); ok {
		return m.(*sync.Mutex)
	}
	m, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// GetOrCreate loads the user record, creating an inactive trial record on
// first contact. The engine never deletes users.
func (l *Ledger) GetOrCreate(ctx context.Context, userID int64, language string) (User, error) {
	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	u, err := l.store.GetUser(ctx, userID)
	if err == nil {
		return u, nil
	}
	if err != ErrUserNotFound {
		return User{}, err
	}
	now := l.clock.Now()
	u = User{
		ID:        userID,
		Plan:      PlanTrial,
		Active:    false,
		LastDay:   now.Format(dayLayout),
		LastMonth: now.Format(monthLayout),
		Language:  language,
	}
	if err := l.store.PutUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authorize rolls stale counters and verifies the user may start a run.
// It never charges; Reserve repeats the same checks before charging.
func (l *Ledger) Authorize(ctx context.Context, userID int64) error {
	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	u, err := l.loadRolled(ctx, userID)
	if err != nil {
		return err
	}
	return l.checkAdmission(u)
}

// Reserve charges one unit of credit under the request id. The journal
// row is written before the counter update so a crash in between leaves a
// replayable reservation rather than a double charge.
//
// Semantics per rid:
//   - first call: counters +1, row created in StateReserved, fresh=true
//   - repeat while reserved: no-op success, fresh=false
//   - repeat after commit/refund: returns the terminal state, no charge
func (l *Ledger) Reserve(ctx context.Context, userID int64, rid string) (state ReservationState, fresh bool, err error) {
	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if r, ok, err := l.store.GetReservation(ctx, rid); err != nil {
		return "", false, err
	} else if ok {
		return r.State, false, nil
	}

	u, err := l.loadRolled(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if err := l.checkAdmission(u); err != nil {
		return "", false, err
	}

	now := l.clock.Now()
	if err := l.store.PutReservation(ctx, Reservation{
		RequestID: rid,
		UserID:    userID,
		State:     StateReserved,
		CreatedAt: now,
	}); err != nil {
		return "", false, err
	}
	u.DailyUsed++
	u.MonthlyUsed++
	if err := l.store.PutUser(ctx, u); err != nil {
		return "", false, err
	}
	l.log.WithFields(logrus.Fields{
		"user": userID, "rid": rid,
		"daily_used": u.DailyUsed, "monthly_used": u.MonthlyUsed,
	}).Debug("credit reserved")
	return StateReserved, true, nil
}

// Commit finalizes a reservation as consumed: totals are bumped exactly
// once. Double commit is a no-op; commit after refund fails.
func (l *Ledger) Commit(ctx context.Context, rid string) error {
	return l.finalize(ctx, rid, StateCommitted)
}

// Refund finalizes a reservation as returned: the usage counters taken by
// Reserve are handed back, clamped at zero if a period rolled in between.
// Double refund is a no-op; refund after commit fails.
func (l *Ledger) Refund(ctx context.Context, rid string) error {
	return l.finalize(ctx, rid, StateRefunded)
}

func (l *Ledger) finalize(ctx context.Context, rid string, to ReservationState) error {
	r, ok, err := l.store.GetReservation(ctx, rid)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownReservation
	}

	mu := l.lockFor(r.UserID)
	mu.Lock()
	defer mu.Unlock()

	// Reload under the lock; a racing finalize may have landed first.
	r, ok, err = l.store.GetReservation(ctx, rid)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownReservation
	}
	if r.State == to {
		return nil // sticky terminal state, repeat is a no-op
	}
	if r.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyFinalized, rid, r.State)
	}

	now := l.clock.Now()
	r.State = to
	r.FinalizedAt = now
	if err := l.store.PutReservation(ctx, r); err != nil {
		return err
	}

	u, err := l.loadRolled(ctx, r.UserID)
	if err != nil {
		return err
	}
	switch to {
	case StateCommitted:
		u.TotalReports++
		u.LastReportAt = now
	case StateRefunded:
		if u.DailyUsed > 0 {
			u.DailyUsed--
		}
		if u.MonthlyUsed > 0 {
			u.MonthlyUsed--
		}
	}
	if err := l.store.PutUser(ctx, u); err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{"user": r.UserID, "rid": rid, "state": to}).Debug("reservation finalized")
	return nil
}

// Snapshot returns the read-only entitlement header for a user.
func (l *Ledger) Snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	u, err := l.loadRolled(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		Plan:      u.Plan,
		Active:    u.Active,
		DailyUsed: u.DailyUsed,
		DailyCap:  u.DailyCap,
		Language:  u.Language,
	}
	if u.MonthlyCap > 0 {
		s.MonthlyRemaining = u.MonthlyCap - u.MonthlyUsed
		if s.MonthlyRemaining < 0 {
			s.MonthlyRemaining = 0
		}
	} else {
		s.MonthlyRemaining = -1
	}
	s.DaysLeft, s.Expired = expiryStatus(u, l.clock.Now())
	return s, nil
}

// loadRolled fetches the user and applies day/month counter rolls,
// persisting the reset so it happens exactly once per period. Callers
// must hold the user lock.
func (l *Ledger) loadRolled(ctx context.Context, userID int64) (User, error) {
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if rollCounters(&u, l.clock.Now()) {
		if err := l.store.PutUser(ctx, u); err != nil {
			return User{}, err
		}
	}
	return u, nil
}

func (l *Ledger) checkAdmission(u User) error {
	if !u.Active {
		return ErrNotActive
	}
	if _, expired := expiryStatus(u, l.clock.Now()); expired {
		return ErrExpired
	}
	if u.DailyCap > 0 && u.DailyUsed >= u.DailyCap {
		return ErrDailyLimit
	}
	if u.MonthlyCap > 0 && u.MonthlyUsed >= u.MonthlyCap {
		return ErrMonthlyLimit
	}
	return nil
}

// rollCounters resets usage counters whose period markers drifted behind
// now. Lexicographic comparison is correct for the fixed-width layouts.
func rollCounters(u *User, now time.Time) bool {
	changed := false
	if day := now.Format(dayLayout); u.LastDay < day {
		u.DailyUsed = 0
		u.LastDay = day
		changed = true
	}
	if month := now.Format(monthLayout); u.LastMonth < month {
		u.MonthlyUsed = 0
		u.LastMonth = month
		changed = true
	}
	return changed
}

// expiryStatus compares expiry and now at day granularity: a subscription
// expiring today is still admissible.
func expiryStatus(u User, now time.Time) (daysLeft int, expired bool) {
	if u.ExpiresAt.IsZero() {
		return 0, true
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	expDay := time.Date(u.ExpiresAt.Year(), u.ExpiresAt.Month(), u.ExpiresAt.Day(), 0, 0, 0, 0, now.Location())
	daysLeft = int(expDay.Sub(today) / (24 * time.Hour))
	return daysLeft, daysLeft < 0
}
