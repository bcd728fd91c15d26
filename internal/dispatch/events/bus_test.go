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

package events

import (
	"testing"
	"time"
)

func TestBus_FanOut(t *testing.T) {
	b := NewBus()
	chA, cancelA := b.Subscribe(8)
	chB, cancelB := b.Subscribe(8)
	defer cancelA()
	defer cancelB()

	b.Publish(Event{Kind: ReportRequested, UserID: 1, VIN: "1HGCM82633A123456"})

	for name, ch := range map[string]<-chan Event{"A": chA, "B": chB} {
		select {
		case e := <-ch:
			if e.Kind != ReportRequested || e.UserID != 1 {
				t.Fatalf("subscriber %s got %+v", name, e)
			}
			if e.TS.IsZero() {
				t.Fatalf("Publish must stamp a timestamp")
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s never received the event", name)
		}
	}
}

func TestBus_SlowSubscriberNeverBlocksPublish(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe(1) // deliberately tiny buffer, never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Kind: ReportAdmitted, UserID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a slow subscriber")
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(8)
	cancel()

	// The channel is closed; publishing afterwards must not panic.
	b.Publish(Event{Kind: ReportRefunded, UserID: 1})

	if _, open := <-ch; open {
		t.Fatalf("cancelled subscription must close its channel")
	}
}
