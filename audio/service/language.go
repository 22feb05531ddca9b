package service

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var languageAliases = map[string]string{
	"english": "en",
	"eng":     "en",
	"arabic":  "ar",
	"ara":     "ar",
}

var languageNames = map[string]string{
	"en": "English",
	"ar": "Arabic",
}

var titleCaser = cases.Title(language.Und)

// NormalizeLanguage maps free-form input to a canonical code. Unknown input
// is returned lower-cased and trimmed.
func NormalizeLanguage(input string) string {
	code := strings.ToLower(strings.TrimSpace(input))
	if canonical, ok := languageAliases[code]; ok {
		return canonical
	}
	return code
}

// IsKnownLanguage reports whether code is a canonical code we store
func IsKnownLanguage(code string) bool {
	_, ok := languageNames[code]
	return ok
}

// LanguageName returns the display name for a canonical code
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return titleCaser.String(code)
}
