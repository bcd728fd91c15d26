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

// Admin surface of the ledger. Every adjustment lands in the audit trail
// with the acting principal and a before/after summary.
package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetLimits replaces the daily and monthly caps. Zero means unlimited.
func (l *Ledger) SetLimits(ctx context.Context, actor string, userID int64, daily, monthly int64) error {
	return l.adminMutate(ctx, actor, userID, "set_limits", func(u *User) string {
		detail := fmt.Sprintf("daily %d->%d monthly %d->%d", u.DailyCap, daily, u.MonthlyCap, monthly)
		u.DailyCap = daily
		u.MonthlyCap = monthly
		return detail
	})
}

// Activate turns the subscription on for the given number of days with
// fresh caps and zeroed usage counters.
func (l *Ledger) Activate(ctx context.Context, actor string, userID int64, plan Plan, days int, daily, monthly int64) error {
	return l.adminMutate(ctx, actor, userID, "activate", func(u *User) string {
		now := l.clock.Now()
		u.Plan = plan
		u.Active = true
		u.ActivatedAt = now
		u.ExpiresAt = now.AddDate(0, 0, days)
		u.DailyCap = daily
		u.MonthlyCap = monthly
		u.DailyUsed = 0
		u.MonthlyUsed = 0
		u.LastDay = now.Format(dayLayout)
		u.LastMonth = now.Format(monthLayout)
		return fmt.Sprintf("plan=%s days=%d daily=%d monthly=%d", plan, days, daily, monthly)
	})
}

// Deactivate turns the subscription off. Counters and history are kept.
func (l *Ledger) Deactivate(ctx context.Context, actor string, userID int64) error {
	return l.adminMutate(ctx, actor, userID, "deactivate", func(u *User) string {
		u.Active = false
		return "active=false"
	})
}

// ResetToday zeroes the daily usage counter for the current day.
func (l *Ledger) ResetToday(ctx context.Context, actor string, userID int64) error {
	return l.adminMutate(ctx, actor, userID, "reset_today", func(u *User) string {
		detail := fmt.Sprintf("daily_used %d->0", u.DailyUsed)
		u.DailyUsed = 0
		u.LastDay = l.clock.Now().Format(dayLayout)
		return detail
	})
}

func (l *Ledger) adminMutate(ctx context.Context, actor string, userID int64, action string, fn func(*User) string) error {
	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	u, err := l.loadRolled(ctx, userID)
	if err != nil {
		return err
	}
	detail := fn(&u)
	if err := l.store.PutUser(ctx, u); err != nil {
		return err
	}
	entry := AuditEntry{
		At:     l.clock.Now(),
		Actor:  actor,
		Action: action,
		UserID: userID,
		Detail: detail,
	}
	if err := l.store.AppendAudit(ctx, entry); err != nil {
		// The mutation already landed; an audit write failure must not
		// roll it back. Surface it loudly instead.
		l.log.WithError(err).WithField("user", userID).Error("audit append failed")
	}
	l.log.WithFields(logrus.Fields{
		"user": userID, "actor": actor, "action": action, "detail": detail,
	}).Info("admin adjustment")
	return nil
}
