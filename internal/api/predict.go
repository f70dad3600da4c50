package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/truthlens/internal/extract"
	"github.com/zombar/truthlens/internal/feed"
	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/pipeline"
	"github.com/zombar/truthlens/internal/scraper"
)

// PredictionResponse is the body of a successful classification
type PredictionResponse struct {
	ID               string                `json:"id"`
	Prediction       string                `json:"prediction"`
	Label            int                   `json:"label"`
	Probability      float64               `json:"probability"`
	Confidence       float64               `json:"confidence"`
	ConfidenceTier   models.ConfidenceTier `json:"confidence_tier"`
	Recommendation   string                `json:"recommendation"`
	ModelInfo        models.ModelInfo      `json:"model_info"`
	ExtractedPreview string                `json:"extracted_preview"`
	DebugInfo        *pipeline.DebugInfo   `json:"debug_info,omitempty"`
	Error            string                `json:"error,omitempty"`
	Text             string                `json:"text,omitempty"`
	Article          *models.Article       `json:"article,omitempty"`
}

// FeedItemResponse is one entry of a feed classification
type FeedItemResponse struct {
	Title     string              `json:"title"`
	Link      string              `json:"link"`
	Published *time.Time          `json:"published,omitempty"`
	Result    *PredictionResponse `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
	Kind      models.ErrorKind    `json:"kind,omitempty"`
}

// FeedResponse is the body of /predict_feed
type FeedResponse struct {
	URL        string             `json:"url"`
	Count      int                `json:"count"`
	Classified int                `json:"classified"`
	Items      []FeedItemResponse `json:"items"`
}

type predictRequest struct {
	Text        string `json:"text"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type urlRequest struct {
	URL   string `json:"url"`
	Limit int    `json:"limit"`
}

func (h *Handler) wantDebug(r *http.Request) bool {
	if h.cfg.Debug {
		return true
	}
	debug, _ := strconv.ParseBool(r.URL.Query().Get("debug"))
	return debug
}

func (h *Handler) newResponse(r *http.Request, result *pipeline.Result) *PredictionResponse {
	d := result.Decision
	resp := &PredictionResponse{
		ID:               result.ID,
		Prediction:       pipeline.PredictionName(d.Label),
		Label:            pipeline.NumericLabel(d.Label),
		Probability:      d.ProbabilityFake,
		Confidence:       d.Confidence,
		ConfidenceTier:   d.ConfidenceTier,
		Recommendation:   result.Recommendation,
		ModelInfo:        result.ModelInfo,
		ExtractedPreview: result.Preview,
		Error:            result.Error,
	}
	if h.wantDebug(r) {
		resp.DebugInfo = result.Debug
	}
	return resp
}

// handlePredict classifies JSON text or an uploaded PDF, DOCX or TXT file
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		name, content, err := h.readUpload(w, r, "file")
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		text, err := extract.Text(name, content)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		req = pipeline.Request{
			Input:     models.ClassificationInput{Body: text},
			Source:    models.SourceFile,
			SourceRef: name,
			FileInfo:  fmt.Sprintf("%s (%d bytes)", name, len(content)),
		}
	} else {
		var body predictRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.respondError(w, r, &models.InvalidRequestError{Reason: "invalid request body"})
			return
		}
		req = pipeline.Request{
			Input: models.ClassificationInput{
				Title:       body.Title,
				Body:        body.Text,
				Description: body.Description,
			},
			Source: models.SourceManual,
		}
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("source", string(req.Source)))

	result, err := h.deps.Classifier.Classify(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, h.newResponse(r, result), http.StatusOK)
}

// handleOCRPredict reads an image through OCR and classifies the text
func (h *Handler) handleOCRPredict(w http.ResponseWriter, r *http.Request) {
	if h.deps.OCR == nil {
		respondMessage(w, "OCR is not configured", http.StatusServiceUnavailable)
		return
	}

	name, content, err := h.readUpload(w, r, "image")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	text, err := h.deps.OCR.Recognize(r.Context(), name, content)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.deps.Classifier.Classify(r.Context(), pipeline.Request{
		Input:     models.ClassificationInput{Body: text},
		Source:    models.SourceOCR,
		SourceRef: name,
		FileInfo:  fmt.Sprintf("%s (%d bytes)", name, len(content)),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := h.newResponse(r, result)
	resp.Text = text
	respondJSON(w, resp, http.StatusOK)
}

// handlePredictURL scrapes a news page and classifies its article
func (h *Handler) handlePredictURL(w http.ResponseWriter, r *http.Request) {
	if h.deps.Articles == nil {
		respondMessage(w, "URL analysis is not configured", http.StatusServiceUnavailable)
		return
	}

	var body urlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, r, &models.InvalidRequestError{Reason: "invalid request body"})
		return
	}
	if _, err := scraper.ParseURL(body.URL); err != nil {
		h.respondError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("article.url", body.URL))

	article, err := h.deps.Articles.Fetch(r.Context(), body.URL)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.deps.Classifier.Classify(r.Context(), pipeline.Request{
		Input:     article.Input(),
		Source:    models.SourceURL,
		SourceRef: article.URL,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := h.newResponse(r, result)
	resp.Article = article
	respondJSON(w, resp, http.StatusOK)
}

// handlePredictFeed classifies the items of an RSS or Atom feed. Items that
// cannot be classified carry their own error.
func (h *Handler) handlePredictFeed(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		respondMessage(w, "feed analysis is not configured", http.StatusServiceUnavailable)
		return
	}

	var body urlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, r, &models.InvalidRequestError{Reason: "invalid request body"})
		return
	}
	if _, err := scraper.ParseURL(body.URL); err != nil {
		h.respondError(w, r, err)
		return
	}

	items, err := h.deps.Feeds.Fetch(r.Context(), body.URL, feed.ClampLimit(body.Limit))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	reqs := make([]pipeline.Request, len(items))
	for i, item := range items {
		reqs[i] = pipeline.Request{Input: item.Input, Source: models.SourceFeed, SourceRef: item.Link}
	}

	resp := FeedResponse{URL: body.URL, Count: len(items), Items: make([]FeedItemResponse, len(items))}
	for i, outcome := range h.deps.Classifier.ClassifyEach(r.Context(), reqs) {
		entry := FeedItemResponse{
			Title:     items[i].Title,
			Link:      items[i].Link,
			Published: items[i].Published,
		}
		if outcome.Err != nil {
			entry.Error = outcome.Err.Error()
			entry.Kind = models.KindOf(outcome.Err)
		} else {
			entry.Result = h.newResponse(r, outcome.Result)
			resp.Classified++
		}
		resp.Items[i] = entry
	}

	respondJSON(w, resp, http.StatusOK)
}

// readUpload reads one multipart file field within the upload limit
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, field string) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	file, header, err := r.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, &models.InvalidRequestError{Reason: fmt.Sprintf("upload exceeds %d bytes", h.cfg.MaxUploadBytes)}
		}
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, &models.InvalidRequestError{Reason: fmt.Sprintf("missing %q file field", field)}
		}
		return "", nil, &models.InvalidRequestError{Reason: "invalid multipart form"}
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(content) == 0 {
		return "", nil, &models.InsufficientContentError{Reason: "uploaded file is empty"}
	}
	return header.Filename, content, nil
}
