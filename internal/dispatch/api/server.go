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

// Package api is a thin HTTP adapter over the dispatch engine, used by
// the demo binary and by ops tooling. Chat adapters consume the same
// engine API; this package is deliberately free of any chat semantics.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"vindispatch/internal/dispatch/engine"
)

// Server exposes Submit and GetSnapshot over HTTP.
type Server struct {
	engine *engine.Engine
}

// NewServer wraps an engine.
func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// RegisterRoutes sets up the HTTP routes on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

type submitResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// handleSubmit accepts a submission as query parameters:
// user_id, vin, lang, chat_id, message_id, client_key.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	vin := r.URL.Query().Get("vin")
	if vin == "" {
		http.Error(w, "vin is required", http.StatusBadRequest)
		return
	}
	chatID, _ := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	messageID, _ := strconv.ParseInt(r.URL.Query().Get("message_id"), 10, 64)

	ack, err := s.engine.Submit(r.Context(), engine.Job{
		Channel:     "http",
		UserID:      userID,
		VIN:         vin,
		Language:    r.URL.Query().Get("lang"),
		ClientKey:   r.URL.Query().Get("client_key"),
		ChatID:      chatID,
		MessageID:   messageID,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		http.Error(w, "submit failed", http.StatusInternalServerError)
		return
	}

	code := http.StatusAccepted
	if ack.Status == engine.AckRejected {
		code = http.StatusForbidden
	}
	writeJSON(w, code, submitResponse{
		Status:    string(ack.Status),
		RequestID: ack.RequestID,
		Message:   ack.Message,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	snap, err := s.engine.GetSnapshot(r.Context(), userID)
	if err != nil {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe starts the adapter on addr with conservative timeouts.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}
