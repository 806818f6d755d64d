// Package strings provides string manipulation utilities shared by request
// DTOs and validators.
package strings

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Sanitize strips every HTML element from s and trims surrounding space.
// Free text from the API goes through it before reaching storage. The
// strict policy entity-encodes the text it keeps; that is undone so "&" and
// "'" are stored as typed and compare equal to values from other sources.
func Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// SanitizePtr applies Sanitize to an optional string.
func SanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Sanitize(*s)
	return &v
}

// TrimStrings trims each referenced string in place.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

// TrimSpacePtr trims whitespace from an optional string pointer.
func TrimSpacePtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}

func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
