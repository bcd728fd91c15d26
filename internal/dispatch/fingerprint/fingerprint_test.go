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

package fingerprint

import (
	"regexp"
	"testing"
)

var hex24 = regexp.MustCompile(`^[0-9a-f]{24}$`)

func TestID_StableAndNormalized(t *testing.T) {
	base := Request{
		Channel:  "Telegram",
		UserID:   42,
		VIN:      "1hgcm82633a123456",
		Language: "EN",
	}

	t.Run("Shape", func(t *testing.T) {
		if id := ID(base); !hex24.MatchString(id) {
			t.Fatalf("ID() = %q, want 24 lowercase hex chars", id)
		}
	})

	t.Run("DeterministicAcrossCalls", func(t *testing.T) {
		if a, b := ID(base), ID(base); a != b {
			t.Fatalf("same request hashed differently: %q vs %q", a, b)
		}
	})

	t.Run("CaseInsensitiveOnChannelLanguageVIN", func(t *testing.T) {
		other := base
		other.Channel = "telegram"
		other.Language = "en"
		other.VIN = "1HGCM82633A123456"
		if ID(base) != ID(other) {
			t.Fatalf("case variants of channel/language/vin must share an id")
		}
	})

	t.Run("NilAndEmptyOptionsEquivalent", func(t *testing.T) {
		withEmpty := base
		withEmpty.Options = map[string]string{}
		if ID(base) != ID(withEmpty) {
			t.Fatalf("nil options and empty options must share an id")
		}
	})

	t.Run("DistinctInputsDistinctIDs", func(t *testing.T) {
		seen := map[string]Request{}
		variants := []Request{
			base,
			{Channel: "telegram", UserID: 43, VIN: base.VIN, Language: "en"},
			{Channel: "telegram", UserID: 42, VIN: "5YJSA1E26MF123456", Language: "en"},
			{Channel: "telegram", UserID: 42, VIN: base.VIN, Language: "ar"},
			{Channel: "telegram", UserID: 42, VIN: base.VIN, Language: "en", ClientKey: "resubmit-1"},
			{Channel: "telegram", UserID: 42, VIN: base.VIN, Language: "en", Options: map[string]string{"fast": "1"}},
		}
		for _, v := range variants {
			id := ID(v)
			if prev, dup := seen[id]; dup {
				t.Fatalf("collision between %+v and %+v", prev, v)
			}
			seen[id] = v
		}
	})
}
