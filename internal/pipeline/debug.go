package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/textproc"
)

const (
	titlePreviewLength = 50
	textPreviewLength  = 100
)

// DebugInfo exposes the intermediate values of one run
type DebugInfo struct {
	models.Decision
	Recommendation    string `json:"recommendation"`
	ExtractionMethod  string `json:"extraction_method"`
	ContentSeparation string `json:"content_separation"`
	FileInfo          string `json:"file_info,omitempty"`
	TitleLength       int    `json:"title_length"`
	TextLength        int    `json:"text_length"`
	CombinedLength    int    `json:"combined_length"`
	TitlePreview      string `json:"title_preview"`
	TextPreview       string `json:"text_preview"`
	HasTitle          bool   `json:"has_title"`
	HasContent        bool   `json:"has_content"`
	Truncated         bool   `json:"truncated"`
	Error             string `json:"error,omitempty"`
}

func newDebugInfo(req Request, source models.Source, result *Result, combinedLength int, truncated bool) *DebugInfo {
	title := strings.TrimSpace(req.Input.Title)
	body := strings.TrimSpace(req.Input.Body)

	return &DebugInfo{
		Decision:          result.Decision,
		Recommendation:    result.Recommendation,
		ExtractionMethod:  string(source),
		ContentSeparation: contentSeparation(title != "", body != ""),
		FileInfo:          req.FileInfo,
		TitleLength:       utf8.RuneCountInString(title),
		TextLength:        utf8.RuneCountInString(body),
		CombinedLength:    combinedLength,
		TitlePreview:      textproc.Shorten(title, titlePreviewLength),
		TextPreview:       textproc.Shorten(body, textPreviewLength),
		HasTitle:          title != "",
		HasContent:        body != "",
		Truncated:         truncated,
		Error:             result.Error,
	}
}

func contentSeparation(hasTitle, hasContent bool) string {
	switch {
	case hasTitle && hasContent:
		return "title_and_content"
	case hasTitle:
		return "title_only"
	case hasContent:
		return "content_only"
	default:
		return "none"
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
