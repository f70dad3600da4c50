// Package ocr reads text from images through an OCR.space compatible API.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zombar/truthlens/internal/models"
)

const (
	DefaultURL      = "https://api.ocr.space/parse/image"
	DefaultLanguage = "spa"
	DefaultTimeout  = 30 * time.Second

	serviceName = "ocr"
)

// Config configures the OCR client
type Config struct {
	URL      string
	APIKey   string
	Language string
	Timeout  time.Duration
	// RatePerSecond limits outgoing requests; zero disables the limit
	RatePerSecond float64
}

// Client calls the OCR service
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// New creates an OCR client, filling in defaults
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// Recognize uploads an image and returns its trimmed text. A failed call or
// non-200 answer is an UpstreamServiceError; an image without text is
// InsufficientContent.
func (c *Client) Recognize(ctx context.Context, filename string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", &models.InsufficientContentError{Reason: "empty image"}
	}
	if filename == "" {
		filename = "image.jpg"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &models.UpstreamServiceError{Service: serviceName, Err: err}
	}

	body, contentType, err := c.multipartBody(filename, image)
	if err != nil {
		return "", fmt.Errorf("failed to build OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &models.UpstreamServiceError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &models.UpstreamServiceError{Service: serviceName, StatusCode: resp.StatusCode}
	}

	var parsed parseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&parsed); err != nil {
		return "", &models.UpstreamServiceError{Service: serviceName, Err: fmt.Errorf("invalid response: %w", err)}
	}
	if parsed.IsErroredOnProcessing && len(parsed.ParsedResults) == 0 {
		return "", &models.UpstreamServiceError{
			Service: serviceName,
			Err:     fmt.Errorf("processing failed: %s", strings.Trim(string(parsed.ErrorMessage), `[]"`)),
		}
	}

	var text string
	if len(parsed.ParsedResults) > 0 {
		text = strings.TrimSpace(parsed.ParsedResults[0].ParsedText)
	}
	if text == "" {
		return "", &models.InsufficientContentError{Reason: "no text detected in the image"}
	}
	return text, nil
}

func (c *Client) multipartBody(filename string, image []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"apikey":            c.cfg.APIKey,
		"language":          c.cfg.Language,
		"isOverlayRequired": "false",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
