package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// TotalBudget is the character budget shared by title, description and body
	TotalBudget = 500
	// MinBodyBudget is the floor kept for the body however long the title is
	MinBodyBudget = 200
	// MinPartialParagraph is the least remaining budget worth filling with a
	// cut paragraph
	MinPartialParagraph = 50
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

// BodyBudget returns how many characters of body fit next to a title and
// description of the given lengths.
func BodyBudget(titleLen, descriptionLen int) int {
	budget := TotalBudget - (titleLen + descriptionLen)
	if budget < MinBodyBudget {
		return MinBodyBudget
	}
	return budget
}

// Truncate shortens body to its budget keeping whole leading paragraphs.
// When the next paragraph does not fit but at least MinPartialParagraph
// characters remain, that paragraph is cut to fill the budget.
// Lengths are counted in runes.
func Truncate(body string, titleLen, descriptionLen int) (string, bool) {
	budget := BodyBudget(titleLen, descriptionLen)
	if utf8.RuneCountInString(body) <= budget {
		return body, false
	}

	var (
		b    strings.Builder
		used int
	)
	for _, para := range splitParagraphs(body) {
		sep := 0
		if used > 0 {
			sep = 2
		}
		n := utf8.RuneCountInString(para)

		if used+sep+n <= budget {
			if sep > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(para)
			used += sep + n
			continue
		}

		remaining := budget - used - sep
		if remaining >= MinPartialParagraph {
			if sep > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(firstRunes(para, remaining))
		}
		break
	}

	return strings.TrimRightFunc(b.String(), isSpace), true
}

// splitParagraphs splits on blank lines and drops empty paragraphs
func splitParagraphs(text string) []string {
	raw := paragraphBreak.Split(text, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
