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

// Package ledger is the authoritative owner of per-user entitlement state
// and of the reservation journal that makes report accounting idempotent.
// All counter mutation flows through Reserve/Commit/Refund/admin paths
// under an exclusive per-user lock.
package ledger

import (
	"errors"
	"time"
)

// Plan identifies the subscription flavor of a user.
type Plan string

const (
	PlanTrial   Plan = "trial"
	PlanMonthly Plan = "monthly"
	PlanCustom  Plan = "custom"
)

// User is the durable entitlement record. Caps of 0 mean unlimited.
// LastDay ("2006-01-02") and LastMonth ("2006-01") mark the period the
// usage counters belong to; the ledger rolls them transparently on first
// touch of a new day or month.
type User struct {
	ID          int64     `json:"id"`
	Plan        Plan      `json:"plan"`
	Active      bool      `json:"active"`
	ActivatedAt time.Time `json:"activated_at"`
	ExpiresAt   time.Time `json:"expires_at"`

	DailyCap    int64 `json:"daily_cap"`
	MonthlyCap  int64 `json:"monthly_cap"`
	DailyUsed   int64 `json:"daily_used"`
	MonthlyUsed int64 `json:"monthly_used"`

	LastDay   string `json:"last_day"`
	LastMonth string `json:"last_month"`

	TotalReports int64     `json:"total_reports"`
	LastReportAt time.Time `json:"last_report_at"`

	Language string `json:"language"`
}

// ReservationState is the lifecycle state of a reservation row.
// Committed and refunded are terminal and sticky.
type ReservationState string

const (
	StateReserved  ReservationState = "reserved"
	StateCommitted ReservationState = "committed"
	StateRefunded  ReservationState = "refunded"
)

// Terminal reports whether the state can no longer change.
func (s ReservationState) Terminal() bool {
	return s == StateCommitted || s == StateRefunded
}

// Reservation is one row of the exactly-once journal. Its presence across
// restarts is what keeps replayed request ids from double-charging.
type Reservation struct {
	RequestID   string           `json:"request_id"`
	UserID      int64            `json:"user_id"`
	State       ReservationState `json:"state"`
	CreatedAt   time.Time        `json:"created_at"`
	FinalizedAt time.Time        `json:"finalized_at,omitempty"`
}

// AuditEntry records one admin adjustment against a user.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	UserID int64     `json:"user_id"`
	Detail string    `json:"detail"`
}

// Snapshot is the read-only entitlement header shown to users.
// Remaining values of -1 render as unlimited.
type Snapshot struct {
	Plan             Plan
	Active           bool
	MonthlyRemaining int64 // -1 when the monthly cap is unlimited
	DailyUsed        int64
	DailyCap         int64 // 0 when unlimited
	DaysLeft         int   // 0 means expires today; negative means expired
	Expired          bool
	Language         string
}

// Authorization and journal errors. Engine code branches with errors.Is.
var (
	ErrUserNotFound       = errors.New("ledger: user not found")
	ErrNotActive          = errors.New("ledger: subscription not active")
	ErrExpired            = errors.New("ledger: subscription expired")
	ErrDailyLimit         = errors.New("ledger: daily limit reached")
	ErrMonthlyLimit       = errors.New("ledger: monthly limit reached")
	ErrAlreadyFinalized   = errors.New("ledger: reservation already finalized")
	ErrUnknownReservation = errors.New("ledger: unknown reservation")
)
