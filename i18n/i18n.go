// Package i18n translates the short error and violation codes returned by the
// API into human readable messages.
package i18n

import (
	"golang.org/x/text/language"
)

const defaultLang = "en"

var supported = []language.Tag{language.English, language.Swedish}

var matcher = language.NewMatcher(supported)

var messages = map[string]map[string]string{
	"en": {
		"required":                    "Required",
		"too_small":                   "Too small",
		"too_large":                   "Too large",
		"out_of_range":                "Out of range",
		"must_not_be_negative":        "Must not be negative",
		"invalid_choice":              "Invalid choice",
		"invalid":                     "Invalid",
		"not_allowed":                 "Only administrators may set this",
		"before_valid_from":           "Must not be before the start date",
		"validation_failed":           "Validation failed",
		"not_found":                   "Not found",
		"conflict":                    "Conflict",
		"dependency":                  "Still in use",
		"cannot_delete_default_list":  "The default price list cannot be deleted",
		"duplicate_article_code":      "An article with this code already exists",
		"billing_line_locked":         "The billing line can no longer be changed",
		"invalid_status_transition":   "Status change not allowed",
		"unauthorized":                "Unauthorized",
		"forbidden":                   "Forbidden",
		"invalid_json":                "Invalid JSON",
		"invalid_id":                  "Invalid id",
		"internal_error":              "Internal error",
		"discount_approval_requested": "Discount approval requested",
	},
	"sv": {
		"required":                    "Obligatoriskt",
		"too_small":                   "För litet",
		"too_large":                   "För stort",
		"out_of_range":                "Utanför tillåtet intervall",
		"must_not_be_negative":        "Får inte vara negativt",
		"invalid_choice":              "Ogiltigt val",
		"invalid":                     "Ogiltigt",
		"not_allowed":                 "Endast administratörer får ange detta",
		"before_valid_from":           "Får inte vara före startdatum",
		"validation_failed":           "Valideringen misslyckades",
		"not_found":                   "Hittades inte",
		"conflict":                    "Konflikt",
		"dependency":                  "Används fortfarande",
		"cannot_delete_default_list":  "Standardprislistan kan inte tas bort",
		"duplicate_article_code":      "En artikel med denna kod finns redan",
		"billing_line_locked":         "Debiteringsraden kan inte längre ändras",
		"invalid_status_transition":   "Statusändringen är inte tillåten",
		"unauthorized":                "Ej inloggad",
		"forbidden":                   "Åtkomst nekad",
		"invalid_json":                "Ogiltig JSON",
		"invalid_id":                  "Ogiltigt id",
		"internal_error":              "Internt fel",
		"discount_approval_requested": "Rabatt väntar på godkännande",
	},
}

// DetectLanguage picks the best supported language from an Accept-Language
// header value. Unknown or empty input yields the default language.
func DetectLanguage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return defaultLang
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return defaultLang
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T translates code into lang, falling back to the default language and
// finally to the code itself.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[defaultLang][code]; ok {
		return s
	}
	return code
}

// Violations translates every code of a field violation map.
func Violations(lang string, v map[string]string) map[string]string {
	out := make(map[string]string, len(v))
	for field, code := range v {
		out[field] = T(lang, code)
	}
	return out
}
