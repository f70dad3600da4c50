// Package textproc turns heterogeneous news content into the single string the
// classifier consumes.
package textproc

import (
	"regexp"
	"strings"
)

var (
	urlPattern       = regexp.MustCompile(`(?i)(?:http|www)\S+`)
	socialPattern    = regexp.MustCompile(`[@#][\p{L}\p{N}_]+`)
	nonLetterPattern = regexp.MustCompile(`[^a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Normalize strips URLs, handles, hashtags, digits and punctuation from raw
// text, then lowercases and collapses whitespace.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := urlPattern.ReplaceAllString(raw, "")
	text = socialPattern.ReplaceAllString(text, "")
	text = nonLetterPattern.ReplaceAllString(text, " ")
	text = spacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}
