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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour)
}

func TestRedisStore_RoundTrips(t *testing.T) {
	ctx := context.Background()
	store := testRedisStore(t)

	t.Run("MissingUser", func(t *testing.T) {
		_, err := store.GetUser(ctx, 404)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("UserRoundTrip", func(t *testing.T) {
		in := User{
			ID:         9,
			Plan:       PlanCustom,
			Active:     true,
			ExpiresAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			DailyCap:   25,
			MonthlyCap: 500,
			DailyUsed:  3,
			LastDay:    "2025-10-07",
			LastMonth:  "2025-10",
			Language:   "ar",
		}
		require.NoError(t, store.PutUser(ctx, in))
		out, err := store.GetUser(ctx, 9)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("ReservationRoundTrip", func(t *testing.T) {
		_, ok, err := store.GetReservation(ctx, "rid-none")
		require.NoError(t, err)
		require.False(t, ok)

		in := Reservation{
			RequestID: "deadbeefdeadbeefdeadbeef",
			UserID:    9,
			State:     StateReserved,
			CreatedAt: time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.PutReservation(ctx, in))
		out, ok, err := store.GetReservation(ctx, in.RequestID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, in, out)
	})

	t.Run("AuditAppend", func(t *testing.T) {
		require.NoError(t, store.AppendAudit(ctx, AuditEntry{
			At: time.Now().UTC(), Actor: "admin:1", Action: "activate", UserID: 9,
		}))
	})
}

// TestRedisStore_LedgerEndToEnd runs the accounting flow against the
// Redis store to confirm nothing relies on MemoryStore specifics.
func TestRedisStore_LedgerEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := testRedisStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC))
	l := New(store, clock, nil)

	require.NoError(t, store.PutUser(ctx, User{
		ID:         1,
		Plan:       PlanMonthly,
		Active:     true,
		ExpiresAt:  clock.Now().AddDate(0, 1, 0),
		DailyCap:   25,
		MonthlyCap: 500,
		LastDay:    clock.Now().Format(dayLayout),
		LastMonth:  clock.Now().Format(monthLayout),
	}))

	state, fresh, err := l.Reserve(ctx, 1, "rid-redis")
	require.NoError(t, err)
	require.Equal(t, StateReserved, state)
	require.True(t, fresh)

	require.NoError(t, l.Commit(ctx, "rid-redis"))
	require.NoError(t, l.Commit(ctx, "rid-redis")) // idempotent

	u, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, u.TotalReports)
	require.EqualValues(t, 1, u.MonthlyUsed)

	// Fresh ledger over the same store: the journal row survives.
	l2 := New(store, clock, nil)
	state, fresh, err = l2.Reserve(ctx, 1, "rid-redis")
	require.NoError(t, err)
	require.Equal(t, StateCommitted, state)
	require.False(t, fresh)
}
