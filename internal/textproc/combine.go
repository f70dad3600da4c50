package textproc

import (
	"strings"
	"unicode/utf8"

	"github.com/zombar/truthlens/internal/models"
)

// MinCombinedLength is the shortest combined text worth sending to a classifier
const MinCombinedLength = 10

// Combine normalizes each field and joins them as
// "title title description body". The title is repeated because headlines
// carry the strongest signal. Empty fields are skipped.
func Combine(in models.ClassificationInput) (string, error) {
	title := Normalize(in.Title)
	description := Normalize(in.Description)
	body := Normalize(in.Body)

	parts := make([]string, 0, 4)
	if title != "" {
		parts = append(parts, title, title)
	}
	if description != "" {
		parts = append(parts, description)
	}
	if body != "" {
		parts = append(parts, body)
	}

	combined := strings.TrimSpace(strings.Join(parts, " "))
	if n := utf8.RuneCountInString(combined); n < MinCombinedLength {
		if in.IsEmpty() {
			return "", &models.InsufficientContentError{Reason: "no text found to analyze"}
		}
		return "", &models.InsufficientContentError{Length: n}
	}

	return combined, nil
}
