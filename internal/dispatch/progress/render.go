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

package progress

import (
	"fmt"
	"strings"

	"vindispatch/internal/dispatch/i18n"
)

// renderHeader formats the quota/expiry snapshot lines.
func renderHeader(lang string, h Header) string {
	monthly := i18n.T(lang, i18n.HeaderUnlimited)
	if h.MonthlyRemaining >= 0 {
		monthly = fmt.Sprintf("%d", h.MonthlyRemaining)
	}

	daily := i18n.T(lang, i18n.HeaderUnlimited)
	if h.DailyCap > 0 {
		daily = fmt.Sprintf("%d/%d", h.DailyUsed, h.DailyCap)
	}

	var expiry string
	switch {
	case h.Expired:
		expiry = i18n.T(lang, i18n.HeaderExpired)
	case h.DaysLeft == 0:
		expiry = i18n.T(lang, i18n.HeaderToday)
	default:
		expiry = i18n.T(lang, i18n.HeaderDays, h.DaysLeft)
	}

	return i18n.T(lang, i18n.HeaderMonthly, monthly) + "\n" +
		i18n.T(lang, i18n.HeaderDaily, daily) + "\n" +
		i18n.T(lang, i18n.HeaderExpiry, expiry)
}

// renderBar draws the fixed-width indicator, e.g. "▰▰▰▰▱▱▱▱▱▱ 40%".
func renderBar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * barWidth / 100
	return strings.Repeat("▰", filled) + strings.Repeat("▱", barWidth-filled) + fmt.Sprintf(" %d%%", percent)
}
