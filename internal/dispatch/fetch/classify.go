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

package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Kind is the tagged failure taxonomy the dispatcher branches on.
type Kind string

const (
	KindNone         Kind = ""
	KindTimeout      Kind = "timeout"
	KindUpstream5xx  Kind = "upstream_5xx"
	KindUnauthorized Kind = "unauthorized"
	KindInvalidVIN   Kind = "invalid_vin"
	KindMalformed    Kind = "malformed"
	KindTransport    Kind = "transport"
	KindUnknown      Kind = "unknown"
)

// verdict is the outcome of classifying a single attempt.
type verdict struct {
	success     bool
	kind        Kind
	transient   bool
	userMessage string
}

// upstreamError is the JSON error envelope some upstream responses carry
// in place of a PDF body.
type upstreamError struct {
	Errors      []string `json:"errors"`
	UserMessage string   `json:"user_message"`
}

// classify converts one raw attempt into a tagged verdict. Exceptions
// from the upstream client stop here; the dispatcher only ever sees tags.
//
// Transient: timeouts, 5xx, non-PDF 200 bodies with no recognizable
// error, transport failures. Permanent: 401/403 or invalid_token,
// invalid_vin, and any response carrying an explicit user message.
func classify(resp Response, err error) verdict {
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return verdict{kind: KindTimeout, transient: true}
		case errors.Is(err, context.Canceled):
			// The run itself is gone; retrying cannot help.
			return verdict{kind: KindTimeout, transient: false}
		default:
			return verdict{kind: KindTransport, transient: true}
		}
	}

	switch {
	case resp.Status == http.StatusOK:
		if isPDF(resp) {
			return verdict{success: true}
		}
		// 200 without a PDF: either an error envelope or garbage.
		if v, ok := classifyEnvelope(resp.Body); ok {
			return v
		}
		return verdict{kind: KindMalformed, transient: true}

	case resp.Status == http.StatusUnauthorized, resp.Status == http.StatusForbidden:
		return verdict{kind: KindUnauthorized, transient: false}

	case resp.Status >= 500:
		return verdict{kind: KindUpstream5xx, transient: true}

	case resp.Status >= 400:
		if v, ok := classifyEnvelope(resp.Body); ok {
			return v
		}
		return verdict{kind: KindUpstream5xx, transient: true}
	}
	return verdict{kind: KindUnknown, transient: true}
}

// classifyEnvelope inspects a JSON error envelope. An envelope with an
// empty error list and no message is not conclusive (ok=false) and the
// caller falls back to the transient default.
func classifyEnvelope(body []byte) (verdict, bool) {
	var ue upstreamError
	if err := json.Unmarshal(body, &ue); err != nil {
		return verdict{}, false
	}
	for _, e := range ue.Errors {
		switch strings.ToLower(strings.TrimSpace(e)) {
		case "invalid_token":
			return verdict{kind: KindUnauthorized, transient: false, userMessage: ue.UserMessage}, true
		case "invalid_vin":
			return verdict{kind: KindInvalidVIN, transient: false, userMessage: ue.UserMessage}, true
		}
	}
	if ue.UserMessage != "" {
		return verdict{kind: KindUnknown, transient: false, userMessage: ue.UserMessage}, true
	}
	return verdict{}, false
}

var pdfMagic = []byte("%PDF")

func isPDF(resp Response) bool {
	if strings.Contains(strings.ToLower(resp.ContentType), "application/pdf") {
		return len(resp.Body) > 0
	}
	return bytes.HasPrefix(resp.Body, pdfMagic)
}
