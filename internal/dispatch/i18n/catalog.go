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

// Package i18n is the enumerated catalog of user-visible message keys and
// their per-language templates. Engine code selects keys only; rendering
// to text happens at the edge. Supported languages: ar, en, ku, ckb.
package i18n

import "fmt"

// Key enumerates every user-visible message the engine can emit.
type Key string

const (
	HeaderMonthly   Key = "header.monthly"
	HeaderDaily     Key = "header.daily"
	HeaderExpiry    Key = "header.expiry"
	HeaderUnlimited Key = "header.unlimited"
	HeaderToday     Key = "header.today"
	HeaderExpired   Key = "header.expired"
	HeaderDays      Key = "header.days"

	ProgressTitle  Key = "progress.title"
	ResultSuccess  Key = "result.success"
	ResultRefunded Key = "result.refunded"

	ErrNotActive      Key = "err.not_active"
	ErrExpired        Key = "err.expired"
	ErrDailyLimit     Key = "err.daily_limit"
	ErrMonthlyLimit   Key = "err.monthly_limit"
	ErrBadVIN         Key = "err.bad_vin"
	ErrInvalidVIN     Key = "err.invalid_vin"
	ErrUnauthorized   Key = "err.unauthorized"
	ErrFetchFailed    Key = "err.fetch_failed"
	ErrDeliveryFailed Key = "err.delivery_failed"
	ErrTimeout        Key = "err.timeout"
	ErrInternal       Key = "err.internal"
)

// DefaultLanguage is the catalog-level fallback of last resort.
const DefaultLanguage = "ar"

var catalog = map[string]map[Key]string{
	"en": {
		HeaderMonthly:     "Monthly remaining: %s",
		HeaderDaily:       "Today: %s",
		HeaderExpiry:      "Subscription: %s",
		HeaderUnlimited:   "unlimited",
		HeaderToday:       "expires today",
		HeaderExpired:     "expired",
		HeaderDays:        "%d days left",
		ProgressTitle:     "Preparing report for %s",
		ResultSuccess:     "Report delivered.",
		ResultRefunded:    "Request failed, your credit was returned: %s",
		ErrNotActive:      "Your subscription is not active. Contact support to activate it.",
		ErrExpired:        "Your subscription has expired.",
		ErrDailyLimit:     "Daily report limit reached. Try again tomorrow.",
		ErrMonthlyLimit:   "Monthly report limit reached.",
		ErrBadVIN:         "That does not look like a valid 17-character VIN.",
		ErrInvalidVIN:     "The provider rejected this VIN. Check the number and try again.",
		ErrUnauthorized:   "The report service refused the request. The team has been notified.",
		ErrFetchFailed:    "Could not produce the report right now. Please try again shortly.",
		ErrDeliveryFailed: "The report was generated but could not be delivered.",
		ErrTimeout:        "The request took too long and was cancelled.",
		ErrInternal:       "Something went wrong on our side. Please try again.",
	},
	"ar": {
		HeaderMonthly:     "المتبقي الشهري: %s",
		HeaderDaily:       "اليوم: %s",
		HeaderExpiry:      "الاشتراك: %s",
		HeaderUnlimited:   "غير محدود",
		HeaderToday:       "ينتهي اليوم",
		HeaderExpired:     "منتهي",
		HeaderDays:        "متبقي %d يوم",
		ProgressTitle:     "جاري تجهيز تقرير %s",
		ResultSuccess:     "تم إرسال التقرير.",
		ResultRefunded:    "فشل الطلب وتمت إعادة الرصيد: %s",
		ErrNotActive:      "اشتراكك غير مفعل. تواصل مع الدعم لتفعيله.",
		ErrExpired:        "انتهت صلاحية اشتراكك.",
		ErrDailyLimit:     "وصلت إلى الحد اليومي للتقارير. حاول غدًا.",
		ErrMonthlyLimit:   "وصلت إلى الحد الشهري للتقارير.",
		ErrBadVIN:         "رقم الهيكل غير صحيح، يجب أن يتكون من 17 خانة.",
		ErrInvalidVIN:     "رفض المزود رقم الهيكل هذا. تحقق من الرقم وحاول مجددًا.",
		ErrUnauthorized:   "رفضت خدمة التقارير الطلب. تم إبلاغ الفريق.",
		ErrFetchFailed:    "تعذر إنشاء التقرير حاليًا. حاول مرة أخرى بعد قليل.",
		ErrDeliveryFailed: "تم إنشاء التقرير لكن تعذر إرساله.",
		ErrTimeout:        "استغرق الطلب وقتًا طويلًا وتم إلغاؤه.",
		ErrInternal:       "حدث خطأ من جهتنا. حاول مرة أخرى.",
	},
	"ku": {
		HeaderMonthly:     "Maweyê mehê: %s",
		HeaderDaily:       "Îro: %s",
		HeaderExpiry:      "Abonetî: %s",
		HeaderUnlimited:   "bêsînor",
		HeaderToday:       "îro diqede",
		HeaderExpired:     "qediya",
		HeaderDays:        "%d roj mane",
		ProgressTitle:     "Rapora %s tê amadekirin",
		ResultSuccess:     "Rapor hat şandin.",
		ResultRefunded:    "Daxwaz bi ser neket û krediya te hat vegerandin: %s",
		ErrNotActive:      "Abonetiya te ne çalak e. Ji bo çalakkirinê bi piştgiriyê re têkilî deyne.",
		ErrExpired:        "Abonetiya te qediyaye.",
		ErrDailyLimit:     "Sînorê rojane yê raporan hat bidestxistin. Sibê dîsa biceribîne.",
		ErrMonthlyLimit:   "Sînorê mehane yê raporan hat bidestxistin.",
		ErrBadVIN:         "Ev ne VIN-eke derbasdar a 17 tîpan e.",
		ErrInvalidVIN:     "Dabînker ev VIN red kir. Hejmarê kontrol bike û dîsa biceribîne.",
		ErrUnauthorized:   "Xizmeta raporan daxwaz red kir. Tîm hat agahdarkirin.",
		ErrFetchFailed:    "Niha rapor nayê çêkirin. Piştî demekê dîsa biceribîne.",
		ErrDeliveryFailed: "Rapor hat çêkirin lê nehat şandin.",
		ErrTimeout:        "Daxwaz zêde dirêj kişand û hat betalkirin.",
		ErrInternal:       "Ji aliyê me ve çewtiyek çêbû. Dîsa biceribîne.",
	},
	"ckb": {
		HeaderMonthly:     "ماوەی مانگانە: %s",
		HeaderDaily:       "ئەمڕۆ: %s",
		HeaderExpiry:      "بەشداری: %s",
		HeaderUnlimited:   "بێ سنوور",
		HeaderToday:       "ئەمڕۆ بەسەردەچێت",
		HeaderExpired:     "بەسەرچووە",
		HeaderDays:        "%d ڕۆژ ماوە",
		ProgressTitle:     "ڕاپۆرتی %s ئامادە دەکرێت",
		ResultSuccess:     "ڕاپۆرتەکە نێردرا.",
		ResultRefunded:    "داواکارییەکە سەرکەوتوو نەبوو و باڵانسەکەت گەڕایەوە: %s",
		ErrNotActive:      "بەشدارییەکەت چالاک نییە. پەیوەندی بە پشتگیری بکە بۆ چالاککردنی.",
		ErrExpired:        "بەشدارییەکەت بەسەرچووە.",
		ErrDailyLimit:     "گەیشتیتە سنووری ڕۆژانەی ڕاپۆرتەکان. بەیانی هەوڵ بدەرەوە.",
		ErrMonthlyLimit:   "گەیشتیتە سنووری مانگانەی ڕاپۆرتەکان.",
		ErrBadVIN:         "ئەمە ژمارەیەکی دروستی VIN نییە، دەبێت ١٧ خانە بێت.",
		ErrInvalidVIN:     "دابینکەر ئەم VINـەی ڕەتکردەوە. ژمارەکە بپشکنە و دووبارە هەوڵ بدە.",
		ErrUnauthorized:   "خزمەتگوزاری ڕاپۆرت داواکارییەکەی ڕەتکردەوە. تیمەکە ئاگادار کرایەوە.",
		ErrFetchFailed:    "لە ئێستادا ناتوانرێت ڕاپۆرتەکە دروست بکرێت. دواتر هەوڵ بدەرەوە.",
		ErrDeliveryFailed: "ڕاپۆرتەکە دروست کرا بەڵام نەتوانرا بنێردرێت.",
		ErrTimeout:        "داواکارییەکە زۆری خایاند و هەڵوەشێنرایەوە.",
		ErrInternal:       "هەڵەیەک لە لای ئێمە ڕوویدا. دووبارە هەوڵ بدە.",
	},
}

// T renders key in lang, falling back lang -> ar -> en. Unknown keys
// render as the raw key string so a missing entry is visible, not silent.
func T(lang string, key Key, args ...interface{}) string {
	tmpl := lookup(lang, key)
	if tmpl == "" {
		return string(key)
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Supported reports whether lang has a catalog table.
func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

func lookup(lang string, key Key) string {
	if m, ok := catalog[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := catalog[DefaultLanguage][key]; ok {
		return s
	}
	return catalog["en"][key]
}
