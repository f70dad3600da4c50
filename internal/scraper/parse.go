package scraper

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/zombar/truthlens/internal/models"
)

const (
	maxImages        = 6
	maxInlineImages  = 5
	minContentLength = 100
	minParagraph     = 20
)

var (
	contentSelectors = []string{
		"article",
		`[role="main"]`,
		".article-content",
		".post-content",
		".entry-content",
		".content",
		".story-body",
		".article-body",
		"main",
	}

	authorSelectors = []string{
		".author",
		".byline",
		".by-author",
		`[rel="author"]`,
		".article-author",
	}

	dateSelectors = []struct {
		selector string
		attr     string
	}{
		{`meta[property="article:published_time"]`, "content"},
		{`meta[name="publish-date"]`, "content"},
		{`meta[name="date"]`, "content"},
		{`meta[property="og:updated_time"]`, "content"},
		{"time[datetime]", "datetime"},
	}

	boilerplate = "script, style, noscript, nav, header, footer, aside, form, iframe"
)

// parseArticle reads metadata before extracting content, which strips
// boilerplate elements from doc
func parseArticle(doc *goquery.Document, base *url.URL) *models.Article {
	ld := jsonLD(doc)

	article := &models.Article{
		URL:         base.String(),
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		Author:      extractAuthor(doc, ld),
		PublishDate: extractDate(doc, ld),
		Images:      extractImages(doc, base),
		Keywords:    extractKeywords(doc),
	}
	article.Content = extractContent(doc)
	return article
}

func meta(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func extractTitle(doc *goquery.Document) string {
	if t := meta(doc, `meta[property="og:title"]`); t != "" {
		return t
	}
	if t := cleanText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return cleanText(doc.Find("h1").First().Text())
}

// extractContent keeps the longest candidate container, one paragraph per
// block, and falls back to every substantial <p> on the page
func extractContent(doc *goquery.Document) string {
	doc.Find(boilerplate).Remove()

	var best string
	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := blockText(s); len([]rune(text)) > len([]rune(best)) {
				best = text
			}
		})
	}

	if len([]rune(best)) < minContentLength {
		best = paragraphText(doc.Selection)
	}
	return best
}

// blockText returns the paragraphs of s separated by blank lines, or its
// flattened text when it has no paragraphs
func blockText(s *goquery.Selection) string {
	if text := paragraphText(s); text != "" {
		return text
	}
	return cleanText(s.Text())
}

func paragraphText(s *goquery.Selection) string {
	var paragraphs []string
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := cleanText(p.Text()); len([]rune(text)) > minParagraph && keepParagraph(text) {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

func extractDescription(doc *goquery.Document) string {
	if d := meta(doc, `meta[name="description"]`); d != "" {
		return d
	}
	return meta(doc, `meta[property="og:description"]`)
}

// linkedData is the subset of schema.org NewsArticle read from JSON-LD
type linkedData struct {
	Author        json.RawMessage `json:"author"`
	DatePublished string          `json:"datePublished"`
	DateCreated   string          `json:"dateCreated"`
}

func jsonLD(doc *goquery.Document) *linkedData {
	raw := strings.TrimSpace(doc.Find(`script[type="application/ld+json"]`).First().Text())
	if raw == "" {
		return nil
	}

	var single linkedData
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return &single
	}
	var list []linkedData
	if err := json.Unmarshal([]byte(raw), &list); err == nil && len(list) > 0 {
		return &list[0]
	}
	return nil
}

func (ld *linkedData) authorName() string {
	if ld == nil || len(ld.Author) == 0 {
		return ""
	}

	var name string
	if err := json.Unmarshal(ld.Author, &name); err == nil {
		return strings.TrimSpace(name)
	}
	var person struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(ld.Author, &person); err == nil && person.Name != "" {
		return strings.TrimSpace(person.Name)
	}
	var people []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(ld.Author, &people); err == nil && len(people) > 0 {
		return strings.TrimSpace(people[0].Name)
	}
	return ""
}

func extractAuthor(doc *goquery.Document, ld *linkedData) string {
	if a := meta(doc, `meta[name="author"]`); a != "" {
		return a
	}
	if a := ld.authorName(); a != "" {
		return a
	}
	for _, selector := range authorSelectors {
		if a := cleanText(doc.Find(selector).First().Text()); a != "" {
			return a
		}
	}
	return ""
}

func extractDate(doc *goquery.Document, ld *linkedData) string {
	for _, ds := range dateSelectors {
		if v, ok := doc.Find(ds.selector).First().Attr(ds.attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if ld != nil {
		if ld.DatePublished != "" {
			return ld.DatePublished
		}
		return ld.DateCreated
	}
	return ""
}

func extractKeywords(doc *goquery.Document) []string {
	raw := meta(doc, `meta[name="keywords"]`)
	if raw == "" {
		return []string{}
	}

	keywords := []string{}
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// extractImages returns the og:image followed by the first inline images,
// resolved against base and deduplicated
func extractImages(doc *goquery.Document, base *url.URL) []string {
	images := []string{}
	seen := map[string]bool{}
	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || len(images) >= maxImages {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			images = append(images, abs)
		}
	}

	add(meta(doc, `meta[property="og:image"]`))
	doc.Find("img[src]").Slice(0, min(maxInlineImages, doc.Find("img[src]").Length())).Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		add(src)
	})
	return images
}
