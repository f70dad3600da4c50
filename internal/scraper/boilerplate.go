package scraper

import (
	"regexp"
	"strings"
	"unicode"
)

// minParagraphScore is the lowest score a paragraph may have and still be
// treated as article text
const minParagraphScore = 0.3

var (
	boilerplatePhrases = []string{
		"suscríbete", "suscribete", "lee también", "lea también", "te puede interesar",
		"noticias relacionadas", "comparte esta noticia", "síguenos en", "siguenos en",
		"todos los derechos reservados", "política de cookies", "politica de cookies",
		"política de privacidad", "aviso legal", "haz clic aquí", "pulsa aquí",
		"contenido patrocinado", "regístrate", "inicia sesión", "ver comentarios",
		"click here", "read more", "subscribe", "sign up", "newsletter",
		"share this", "follow us", "related articles", "you may also like",
		"advertisement", "sponsored content", "cookie policy", "privacy policy",
		"all rights reserved", "skip to content", "back to top",
	}

	captionMarkers = []string{
		"foto:", "fotografía:", "imagen:", "ilustración:", "getty images",
		"europa press/", "efe/", "©", "photo by", "image source:", "credit:",
	}

	socialPrompts = []string{
		"comparte en", "compartir en", "share on", "follow on",
	}

	bylinePattern = regexp.MustCompile(`(?i)^(por|by|escrito por|autor:|redacción)\s`)
)

// paragraphScore is the quality estimate of one paragraph
type paragraphScore struct {
	score   float64
	reasons []string
}

func (p *paragraphScore) penalize(amount float64, reason string) {
	p.score -= amount
	p.reasons = append(p.reasons, reason)
}

// scoreParagraph rates how likely para is article prose rather than
// navigation, captions or calls to action. Scores are clamped to [0, 1].
func scoreParagraph(para string) paragraphScore {
	s := paragraphScore{score: 0.5}

	words := strings.Fields(para)
	if len(words) == 0 {
		return paragraphScore{reasons: []string{"empty"}}
	}
	if len(words) >= 12 {
		s.score += 0.1
		s.reasons = append(s.reasons, "good_length")
	}

	lower := strings.ToLower(para)

	links := strings.Count(lower, "http://") + strings.Count(lower, "https://") +
		strings.Count(lower, "www.") + strings.Count(para, "»") + strings.Count(para, "→")
	if float64(links)/float64(len(words)) > 0.1 {
		s.penalize(0.4, "high_link_density")
	}

	if len(words) < 40 && containsAny(lower, boilerplatePhrases) {
		s.penalize(0.5, "boilerplate_phrase")
	}
	if len(words) < 25 && containsAny(lower, captionMarkers) {
		s.penalize(0.4, "image_caption")
	}
	if containsAny(lower, socialPrompts) {
		s.penalize(0.3, "social_media_prompt")
	}
	if len(words) < 15 && bylinePattern.MatchString(strings.TrimSpace(para)) {
		s.penalize(0.2, "author_byline")
	}

	var upper, letters int
	for _, r := range para {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters >= 20 && float64(upper)/float64(letters) > 0.5 {
		s.penalize(0.3, "excessive_caps")
	}

	punct := strings.Count(para, "!") + strings.Count(para, "*") + strings.Count(para, "#")
	if punct > len(words)/5+1 {
		s.penalize(0.2, "excessive_punctuation")
	}

	s.score = max(0, min(1, s.score))
	return s
}

// keepParagraph reports whether para reads as article text
func keepParagraph(para string) bool {
	return scoreParagraph(para).score >= minParagraphScore
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
