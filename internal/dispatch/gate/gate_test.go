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

package gate

import (
	"context"
	"testing"
	"time"
)

// tryAcquire attempts an acquisition with a short deadline so a full gate
// observably refuses instead of hanging the test.
func tryAcquire(t *testing.T, g *Gate, user int64) (func(), bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	release, err := g.Acquire(ctx, user)
	if err != nil {
		return nil, false
	}
	return release, true
}

func TestGate_PerUserBound(t *testing.T) {
	g := New(2, 10)

	r1, ok := tryAcquire(t, g, 1)
	if !ok {
		t.Fatalf("first acquire must pass")
	}
	r2, ok := tryAcquire(t, g, 1)
	if !ok {
		t.Fatalf("second acquire must pass")
	}
	if _, ok := tryAcquire(t, g, 1); ok {
		t.Fatalf("third acquire for the same user must block")
	}

	// A different user is not affected by user 1's permits.
	r3, ok := tryAcquire(t, g, 2)
	if !ok {
		t.Fatalf("other user must not be blocked by user 1")
	}

	r1()
	r4, ok := tryAcquire(t, g, 1)
	if !ok {
		t.Fatalf("released permit must be reusable")
	}
	r2()
	r3()
	r4()
}

func TestGate_GlobalBound(t *testing.T) {
	g := New(5, 2)

	r1, ok := tryAcquire(t, g, 1)
	if !ok {
		t.Fatalf("acquire 1 must pass")
	}
	r2, ok := tryAcquire(t, g, 2)
	if !ok {
		t.Fatalf("acquire 2 must pass")
	}
	if _, ok := tryAcquire(t, g, 3); ok {
		t.Fatalf("third user must wait on the global permit")
	}

	// S6 shape: one finishing run lets the queued one through.
	r1()
	r3, ok := tryAcquire(t, g, 3)
	if !ok {
		t.Fatalf("queued user must be admitted after a release")
	}
	r2()
	r3()
}

func TestGate_CancelledWaitReleasesHeldPermits(t *testing.T) {
	g := New(1, 1)

	r1, ok := tryAcquire(t, g, 1)
	if !ok {
		t.Fatalf("first acquire must pass")
	}

	// User 2 takes their per-user permit, then blocks on the global one;
	// cancellation must hand the per-user permit back.
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := g.Acquire(ctx, 2)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond) // let the goroutine reach the global wait
	cancel()
	if err := <-errCh; err == nil {
		t.Fatalf("cancelled Acquire must return an error")
	}

	// After the run frees the gate, user 2 must fit again: both their
	// per-user permit and the global permit must be whole.
	r1()
	r2, ok := tryAcquire(t, g, 2)
	if !ok {
		t.Fatalf("permits leaked by the cancelled wait")
	}
	r2()
}

func TestGate_ReleaseIsIdempotent(t *testing.T) {
	g := New(1, 1)
	release, ok := tryAcquire(t, g, 1)
	if !ok {
		t.Fatalf("acquire must pass")
	}
	release()
	release() // second call must be a no-op, not a double release

	r, ok := tryAcquire(t, g, 1)
	if !ok {
		t.Fatalf("gate corrupted by double release")
	}
	r()
	if _, ok := tryAcquire(t, g, 1); !ok {
		t.Fatalf("gate must have exactly one free permit after release")
	}
}
