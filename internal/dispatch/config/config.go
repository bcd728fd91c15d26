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

// Package config resolves the dispatch engine configuration once, at
// startup, from environment variables. Hot paths read the resulting
// Config value only; the environment is never consulted per job.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every knob the dispatch engine consumes. Values are
// normalized (clamped) at construction so downstream code can trust them.
type Config struct {
	// PerUserConcurrency bounds concurrent runs per user (clamp 1-6).
	PerUserConcurrency int
	// GlobalConcurrency bounds concurrent runs process-wide (clamp 1-30).
	GlobalConcurrency int

	// InflightTTL evicts in-flight entries older than this.
	InflightTTL time.Duration

	// TotalDeadline is the end-to-end budget for a single run (clamp 10s-300s).
	TotalDeadline time.Duration
	// SendDeadline caps a single delivery attempt; clamped against the
	// remaining run budget at use time.
	SendDeadline time.Duration

	// GenerateRetries is the upstream attempt count (clamp 1-6).
	GenerateRetries int
	// DeliveryRetries is the delivery attempt count (clamp 1-6).
	DeliveryRetries int
	// RetryBackoff is the capped delay schedule applied before attempt i+1.
	RetryBackoff []time.Duration

	// SupportedLanguages is the accepted language-code set.
	SupportedLanguages map[string]bool
	// DefaultLanguage is used when a job carries no usable language.
	DefaultLanguage string

	// ProgressTick is the progress-channel timer period.
	ProgressTick time.Duration
	// EditThrottle is the minimum gap between unchanged-percent edits.
	EditThrottle time.Duration
}

// Default backoff schedule; the last entry repeats if more attempts remain.
var defaultBackoff = []time.Duration{
	0,
	1 * time.Second,
	3 * time.Second,
	7 * time.Second,
	12 * time.Second,
	20 * time.Second,
}

// Default returns the documented defaults with no environment applied.
func Default() Config {
	return Config{
		PerUserConcurrency: 2,
		GlobalConcurrency:  4,
		InflightTTL:        900 * time.Second,
		TotalDeadline:      120 * time.Second,
		SendDeadline:       60 * time.Second,
		GenerateRetries:    3,
		DeliveryRetries:    3,
		RetryBackoff:       defaultBackoff,
		SupportedLanguages: map[string]bool{"ar": true, "en": true, "ku": true, "ckb": true},
		DefaultLanguage:    "ar",
		ProgressTick:       500 * time.Millisecond,
		EditThrottle:       5 * time.Second,
	}
}

// FromEnv resolves the configuration from the environment, falling back to
// defaults and clamping out-of-range values rather than failing startup.
//
// Recognized variables:
//
//	DISPATCH_PER_USER_CONCURRENCY, DISPATCH_GLOBAL_CONCURRENCY,
//	DISPATCH_INFLIGHT_TTL_SECONDS, DISPATCH_TOTAL_DEADLINE_SECONDS,
//	DISPATCH_SEND_DEADLINE_SECONDS, DISPATCH_GENERATE_RETRIES,
//	DISPATCH_DELIVERY_RETRIES, DISPATCH_DEFAULT_LANGUAGE
func FromEnv() Config {
	c := Default()
	c.PerUserConcurrency = envInt("DISPATCH_PER_USER_CONCURRENCY", c.PerUserConcurrency)
	c.GlobalConcurrency = envInt("DISPATCH_GLOBAL_CONCURRENCY", c.GlobalConcurrency)
	if v := envInt("DISPATCH_INFLIGHT_TTL_SECONDS", int(c.InflightTTL/time.Second)); v > 0 {
		c.InflightTTL = time.Duration(v) * time.Second
	}
	if v := envInt("DISPATCH_TOTAL_DEADLINE_SECONDS", int(c.TotalDeadline/time.Second)); v > 0 {
		c.TotalDeadline = time.Duration(v) * time.Second
	}
	if v := envInt("DISPATCH_SEND_DEADLINE_SECONDS", int(c.SendDeadline/time.Second)); v > 0 {
		c.SendDeadline = time.Duration(v) * time.Second
	}
	c.GenerateRetries = envInt("DISPATCH_GENERATE_RETRIES", c.GenerateRetries)
	c.DeliveryRetries = envInt("DISPATCH_DELIVERY_RETRIES", c.DeliveryRetries)
	if v := os.Getenv("DISPATCH_DEFAULT_LANGUAGE"); v != "" {
		c.DefaultLanguage = v
	}
	return c.Normalize()
}

// Normalize clamps every bounded knob into its documented range and
// returns the adjusted copy. Safe to call on any Config, repeatedly.
func (c Config) Normalize() Config {
	c.PerUserConcurrency = clampInt(c.PerUserConcurrency, 1, 6)
	c.GlobalConcurrency = clampInt(c.GlobalConcurrency, 1, 30)
	c.TotalDeadline = clampDur(c.TotalDeadline, 10*time.Second, 300*time.Second)
	c.GenerateRetries = clampInt(c.GenerateRetries, 1, 6)
	c.DeliveryRetries = clampInt(c.DeliveryRetries, 1, 6)
	if c.InflightTTL <= 0 {
		c.InflightTTL = 900 * time.Second
	}
	if c.SendDeadline <= 0 {
		c.SendDeadline = 60 * time.Second
	}
	if len(c.RetryBackoff) == 0 {
		c.RetryBackoff = defaultBackoff
	}
	if len(c.SupportedLanguages) == 0 {
		c.SupportedLanguages = map[string]bool{"ar": true, "en": true, "ku": true, "ckb": true}
	}
	if c.DefaultLanguage == "" || !c.SupportedLanguages[c.DefaultLanguage] {
		c.DefaultLanguage = "ar"
	}
	if c.ProgressTick <= 0 {
		c.ProgressTick = 500 * time.Millisecond
	}
	if c.EditThrottle <= 0 {
		c.EditThrottle = 5 * time.Second
	}
	return c
}

// Backoff returns the delay to apply before attempt number attempt
// (1-based; attempt 1 has no delay). The schedule's last entry repeats.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt <= 1 || len(c.RetryBackoff) == 0 {
		return 0
	}
	i := attempt - 1
	if i >= len(c.RetryBackoff) {
		i = len(c.RetryBackoff) - 1
	}
	return c.RetryBackoff[i]
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDur(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
