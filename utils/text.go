package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Initials builds an avatar placeholder from the first letter of each word
// in name, or returns fallback when name is blank.
func Initials(name, fallback string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(name, unicode.IsSpace) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// ClampLimit returns def for non-positive limits and caps the rest at max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// NormalizeSkill trims and lower-cases a skill or tag so set membership is
// case-insensitive.
func NormalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
