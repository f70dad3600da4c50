package textproc

import (
	"strings"
	"unicode/utf8"

	"github.com/zombar/truthlens/internal/models"
)

// PreviewLength is the number of characters kept in extracted previews
const PreviewLength = 180

// Preview returns the first PreviewLength characters of the input in its
// original casing, with "..." appended only when something was cut.
func Preview(in models.ClassificationInput) string {
	parts := make([]string, 0, 3)
	for _, field := range []string{in.Title, in.Description, in.Body} {
		if f := strings.TrimSpace(field); f != "" {
			parts = append(parts, f)
		}
	}
	return Shorten(spacePattern.ReplaceAllString(strings.Join(parts, " "), " "), PreviewLength)
}

// Shorten cuts s to n runes, appending "..." when it was longer
func Shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return firstRunes(s, n) + "..."
}
