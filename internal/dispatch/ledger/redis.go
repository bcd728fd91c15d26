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
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore persists users, the reservation journal, and the audit trail
// in Redis. User rows live forever; reservation rows carry a TTL as leak
// protection, chosen comfortably larger than any retry or replay window
// so idempotency is preserved across restarts.
type RedisStore struct {
	c        redis.UniversalClient
	rsvTTL   time.Duration
	auditKey string
	auditCap int64
}

// Keys layout helpers (public for interoperability with ops tooling).
func RedisUserKey(id int64) string { return fmt.Sprintf("user:%d", id) }

func RedisReservationKey(rid string) string { return fmt.Sprintf("rsv:%s", rid) }

// NewRedisStore wraps an existing client. rsvTTL <= 0 selects the default
// of 45 days.
func NewRedisStore(c redis.UniversalClient, rsvTTL time.Duration) *RedisStore {
	if rsvTTL <= 0 {
		rsvTTL = 45 * 24 * time.Hour
	}
	return &RedisStore{
		c:        c,
		rsvTTL:   rsvTTL,
		auditKey: "audit:log",
		auditCap: 10000,
	}
}

// DialRedisStore connects to addr (e.g. "127.0.0.1:6379") and returns a
// store over the connection.
func DialRedisStore(addr string, rsvTTL time.Duration) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}), rsvTTL)
}

func (s *RedisStore) GetUser(ctx context.Context, id int64) (User, error) {
	b, err := s.c.Get(ctx, RedisUserKey(id)).Bytes()
	if err == redis.Nil {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("redis get user %d: %w", id, err)
	}
	var u User
	if err := json.Unmarshal(b, &u); err != nil {
		return User{}, fmt.Errorf("redis decode user %d: %w", id, err)
	}
	return u, nil
}

func (s *RedisStore) PutUser(ctx context.Context, u User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("redis encode user %d: %w", u.ID, err)
	}
	if err := s.c.Set(ctx, RedisUserKey(u.ID), b, 0).Err(); err != nil {
		return fmt.Errorf("redis put user %d: %w", u.ID, err)
	}
	return nil
}

func (s *RedisStore) GetReservation(ctx context.Context, rid string) (Reservation, bool, error) {
	b, err := s.c.Get(ctx, RedisReservationKey(rid)).Bytes()
	if err == redis.Nil {
		return Reservation{}, false, nil
	}
	if err != nil {
		return Reservation{}, false, fmt.Errorf("redis get reservation %s: %w", rid, err)
	}
	var r Reservation
	if err := json.Unmarshal(b, &r); err != nil {
		return Reservation{}, false, fmt.Errorf("redis decode reservation %s: %w", rid, err)
	}
	return r, true, nil
}

func (s *RedisStore) PutReservation(ctx context.Context, r Reservation) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis encode reservation %s: %w", r.RequestID, err)
	}
	if err := s.c.Set(ctx, RedisReservationKey(r.RequestID), b, s.rsvTTL).Err(); err != nil {
		return fmt.Errorf("redis put reservation %s: %w", r.RequestID, err)
	}
	return nil
}

func (s *RedisStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis encode audit: %w", err)
	}
	pipe := s.c.TxPipeline()
	pipe.LPush(ctx, s.auditKey, b)
	pipe.LTrim(ctx, s.auditKey, 0, s.auditCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append audit: %w", err)
	}
	return nil
}
