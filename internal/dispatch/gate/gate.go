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

// Package gate bounds concurrent report runs with two nested weighted
// semaphores: per-user first, then global, always in that order so two
// jobs can never hold the permits in opposite order. The gate is the only
// back-pressure mechanism in the engine; there is no queue behind it.
package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

type userSem struct {
	sem *semaphore.Weighted
	// refs counts holders plus waiters so the entry can be dropped once idle.
	refs int
}

// Gate is the process-global admission gate.
type Gate struct {
	global  *semaphore.Weighted
	perUser int64

	mu    sync.Mutex
	users map[int64]*userSem
}

// New builds a gate with the given bounds. Values are assumed clamped by
// the configuration layer.
func New(perUser, global int) *Gate {
	return &Gate{
		global:  semaphore.NewWeighted(int64(global)),
		perUser: int64(perUser),
		users:   make(map[int64]*userSem),
	}
}

// Acquire takes one per-user permit followed by one global permit,
// waiting FIFO on each. On success it returns a release function that is
// safe to call exactly once from any goroutine. If ctx is cancelled while
// waiting, any permit already held is released and the error returned.
func (g *Gate) Acquire(ctx context.Context, userID int64) (release func(), err error) {
	start := time.Now()
	us := g.retain(userID)

	if err := us.sem.Acquire(ctx, 1); err != nil {
		g.put(userID)
		acquireAborts.Inc()
		return nil, err
	}
	if err := g.global.Acquire(ctx, 1); err != nil {
		us.sem.Release(1)
		g.put(userID)
		acquireAborts.Inc()
		return nil, err
	}
	waitSeconds.Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			g.global.Release(1)
			us.sem.Release(1)
			g.put(userID)
		})
	}, nil
}

func (g *Gate) retain(userID int64) *userSem {
	g.mu.Lock()
	defer g.mu.Unlock()
	us, ok := g.users[userID]
	if !ok {
		us = &userSem{sem: semaphore.NewWeighted(g.perUser)}
		g.users[userID] = us
	}
	us.refs++
	return us
}

func (g *Gate) put(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	us, ok := g.users[userID]
	if !ok {
		return
	}
	us.refs--
	if us.refs <= 0 {
		delete(g.users, userID)
	}
}
