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

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vindispatch/internal/dispatch/config"
	"vindispatch/internal/dispatch/engine"
	"vindispatch/internal/dispatch/events"
	"vindispatch/internal/dispatch/fetch"
	"vindispatch/internal/dispatch/gate"
	"vindispatch/internal/dispatch/inflight"
	"vindispatch/internal/dispatch/ledger"
)

type nullDeliverer struct{}

func (nullDeliverer) EditMessage(context.Context, inflight.Subscriber, string) error {
	return nil
}

func (nullDeliverer) SendDocument(context.Context, inflight.Subscriber, string, []byte) error {
	return nil
}

type pdfUpstream struct{}

func (pdfUpstream) Generate(context.Context, string, string) (fetch.Response, error) {
	return fetch.Response{Status: 200, ContentType: "application/pdf", Body: []byte("%PDF-1.4")}, nil
}

func testServer(t *testing.T) (*Server, *engine.Engine, *ledger.MemoryStore) {
	t.Helper()
	cfg := config.Default()
	cfg.ProgressTick = time.Hour
	cfg.RetryBackoff = []time.Duration{0}
	cfg = cfg.Normalize()

	store := ledger.NewMemoryStore()
	e := engine.New(
		cfg,
		ledger.New(store, nil, nil),
		inflight.New(cfg.InflightTTL, nil),
		gate.New(cfg.PerUserConcurrency, cfg.GlobalConcurrency),
		fetch.New(pdfUpstream{}, cfg.GenerateRetries, cfg.SendDeadline, cfg.Backoff, nil, nil),
		events.NewBus(),
		nullDeliverer{},
		nil, nil,
	)
	return NewServer(e), e, store
}

func seedUser(t *testing.T, store *ledger.MemoryStore, id int64) {
	t.Helper()
	now := time.Now()
	err := store.PutUser(context.Background(), ledger.User{
		ID:         id,
		Plan:       ledger.PlanMonthly,
		Active:     true,
		ExpiresAt:  now.AddDate(0, 1, 0),
		DailyCap:   25,
		MonthlyCap: 500,
		LastDay:    now.Format("2006-01-02"),
		LastMonth:  now.Format("2006-01"),
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandleSubmit(t *testing.T) {
	t.Run("AcceptsValidSubmission", func(t *testing.T) {
		s, e, store := testServer(t)
		seedUser(t, store, 1)

		rec := doRequest(t, s, http.MethodPost,
			"/submit?user_id=1&vin=1HGCM82633A123456&lang=en&chat_id=100&message_id=10")
		e.Close()

		if rec.Code != http.StatusAccepted {
			t.Fatalf("code = %d, want 202; body %q", rec.Code, rec.Body.String())
		}
		var resp struct {
			Status    string `json:"status"`
			RequestID string `json:"request_id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Status != string(engine.AckRegistered) || resp.RequestID == "" {
			t.Fatalf("response = %+v", resp)
		}
	})

	t.Run("RejectionIsForbidden", func(t *testing.T) {
		s, e, store := testServer(t)
		seedUser(t, store, 1)

		rec := doRequest(t, s, http.MethodPost,
			"/submit?user_id=1&vin=TOO-SHORT&lang=en&chat_id=100&message_id=10")
		e.Close()

		if rec.Code != http.StatusForbidden {
			t.Fatalf("code = %d, want 403", rec.Code)
		}
		var resp struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Status != string(engine.AckRejected) || resp.Message == "" {
			t.Fatalf("response = %+v", resp)
		}
	})

	t.Run("MissingUserIDIsBadRequest", func(t *testing.T) {
		s, _, _ := testServer(t)
		if rec := doRequest(t, s, http.MethodPost, "/submit?vin=1HGCM82633A123456"); rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want 400", rec.Code)
		}
	})

	t.Run("MissingVINIsBadRequest", func(t *testing.T) {
		s, _, _ := testServer(t)
		if rec := doRequest(t, s, http.MethodPost, "/submit?user_id=1"); rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want 400", rec.Code)
		}
	})

	t.Run("GetIsMethodNotAllowed", func(t *testing.T) {
		s, _, _ := testServer(t)
		if rec := doRequest(t, s, http.MethodGet, "/submit?user_id=1&vin=1HGCM82633A123456"); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("code = %d, want 405", rec.Code)
		}
	})
}

func TestHandleSnapshot(t *testing.T) {
	s, _, store := testServer(t)
	seedUser(t, store, 7)

	t.Run("KnownUser", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/snapshot?user_id=7")
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("Content-Type = %q", ct)
		}
		var snap ledger.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if snap.MonthlyRemaining != 500 {
			t.Fatalf("MonthlyRemaining = %d, want 500", snap.MonthlyRemaining)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		if rec := doRequest(t, s, http.MethodGet, "/snapshot?user_id=999"); rec.Code != http.StatusNotFound {
			t.Fatalf("code = %d, want 404", rec.Code)
		}
	})

	t.Run("MissingUserID", func(t *testing.T) {
		if rec := doRequest(t, s, http.MethodGet, "/snapshot"); rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want 400", rec.Code)
		}
	})
}

func TestHandleHealthz(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
