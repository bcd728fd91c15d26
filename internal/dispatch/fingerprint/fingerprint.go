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

// Package fingerprint derives the request id used as the idempotency key
// for credit accounting. The id is a 24-hex SHA-256 prefix over the
// canonical JSON encoding of the request identity, so equal submissions
// always map to the same reservation row.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Request carries every field that participates in the identity of a
// submission. ClientKey, when set, distinguishes deliberate manual
// resubmissions that would otherwise collide.
type Request struct {
	Channel   string
	UserID    int64
	VIN       string
	Language  string
	Options   map[string]string
	ClientKey string
}

// ID returns the stable 24-hex digest for r.
//
// Canonical form: JSON object with sorted keys and compact separators,
// channel/language lower-cased, VIN upper-cased. encoding/json emits map
// keys in sorted order, which is exactly the canonicalization we need.
func ID(r Request) string {
	canon := map[string]interface{}{
		"channel":    strings.ToLower(r.Channel),
		"user_id":    r.UserID,
		"vin":        strings.ToUpper(r.VIN),
		"language":   strings.ToLower(r.Language),
		"options":    canonOptions(r.Options),
		"client_key": r.ClientKey,
	}
	b, err := json.Marshal(canon)
	if err != nil {
		// Marshal of string/int64 maps cannot fail; keep the signature simple.
		panic("fingerprint: canonical marshal: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:24]
}

// canonOptions normalizes a nil map to an empty one so presence/absence
// of options does not change the digest.
func canonOptions(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
