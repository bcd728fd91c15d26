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

package i18n

import (
	"strings"
	"testing"
)

var allKeys = []Key{
	HeaderMonthly, HeaderDaily, HeaderExpiry, HeaderUnlimited,
	HeaderToday, HeaderExpired, HeaderDays,
	ProgressTitle, ResultSuccess, ResultRefunded,
	ErrNotActive, ErrExpired, ErrDailyLimit, ErrMonthlyLimit,
	ErrBadVIN, ErrInvalidVIN, ErrUnauthorized, ErrFetchFailed,
	ErrDeliveryFailed, ErrTimeout, ErrInternal,
}

// TestCatalog_Complete guards against a language table drifting out of
// sync when a new key is added: every language must carry every key.
func TestCatalog_Complete(t *testing.T) {
	for lang, table := range catalog {
		for _, key := range allKeys {
			if _, ok := table[key]; !ok {
				t.Errorf("language %q is missing key %q", lang, key)
			}
		}
		if got, want := len(table), len(allKeys); got != want {
			t.Errorf("language %q has %d entries, want %d", lang, got, want)
		}
	}
}

func TestT_RendersArguments(t *testing.T) {
	got := T("en", ProgressTitle, "1HGCM82633A123456")
	if !strings.Contains(got, "1HGCM82633A123456") {
		t.Fatalf("T did not interpolate the VIN: %q", got)
	}
	if got := T("en", HeaderDays, 12); !strings.Contains(got, "12") {
		t.Fatalf("T did not interpolate the day count: %q", got)
	}
}

func TestT_Fallback(t *testing.T) {
	t.Run("UnknownLanguageFallsBackToArabic", func(t *testing.T) {
		if got, want := T("fr", ResultSuccess), T("ar", ResultSuccess); got != want {
			t.Fatalf("T(fr) = %q, want the Arabic text %q", got, want)
		}
	})
	t.Run("EmptyLanguageFallsBackToArabic", func(t *testing.T) {
		if got, want := T("", ErrDailyLimit), T("ar", ErrDailyLimit); got != want {
			t.Fatalf("T(\"\") = %q, want %q", got, want)
		}
	})
	t.Run("UnknownKeyRendersRawKey", func(t *testing.T) {
		if got := T("en", Key("no.such.key")); got != "no.such.key" {
			t.Fatalf("unknown key rendered as %q", got)
		}
	})
}

func TestSupported(t *testing.T) {
	for _, lang := range []string{"ar", "en", "ku", "ckb"} {
		if !Supported(lang) {
			t.Errorf("Supported(%q) = false", lang)
		}
	}
	for _, lang := range []string{"", "fr", "AR", "kur"} {
		if Supported(lang) {
			t.Errorf("Supported(%q) = true", lang)
		}
	}
}

// Messages shown to users must never leak internal terminology.
func TestCatalog_NoInternalJargon(t *testing.T) {
	banned := []string{"http", "500", "upstream", "token", "panic"}
	for lang, table := range catalog {
		for key, text := range table {
			lower := strings.ToLower(text)
			for _, word := range banned {
				if strings.Contains(lower, word) {
					t.Errorf("%s/%s contains %q: %q", lang, key, word, text)
				}
			}
		}
	}
}
