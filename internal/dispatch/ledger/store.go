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
	"sync"
)

// Store is the durable key-value surface the ledger persists through.
// Implementations must be safe for concurrent use; the ledger already
// serializes per-user mutation above this layer, so plain last-write-wins
// puts are sufficient.
type Store interface {
	GetUser(ctx context.Context, id int64) (User, error) // ErrUserNotFound when absent
	PutUser(ctx context.Context, u User) error

	GetReservation(ctx context.Context, rid string) (Reservation, bool, error)
	PutReservation(ctx context.Context, r Reservation) error

	AppendAudit(ctx context.Context, e AuditEntry) error
}

// MemoryStore is the in-process Store used by tests and the demo binary.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]User
	rsvs  map[string]Reservation
	audit []AuditEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]User),
		rsvs:  make(map[string]Reservation),
	}
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryStore) PutUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetReservation(_ context.Context, rid string) (Reservation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rsvs[rid]
	return r, ok, nil
}

func (s *MemoryStore) PutReservation(_ context.Context, r Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rsvs[r.RequestID] = r
	return nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// AuditLog returns a copy of the audit trail. Test helper.
func (s *MemoryStore) AuditLog() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}
