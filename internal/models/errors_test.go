package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"invalid request", &InvalidRequestError{Reason: "bad url"}, KindInvalidRequest},
		{"insufficient content", &InsufficientContentError{Length: 3}, KindInsufficientContent},
		{"unsupported format", &UnsupportedFormatError{Filename: "a.odt"}, KindUnsupportedFormat},
		{"extraction", &ExtractionError{Format: "pdf", Err: cause}, KindExtraction},
		{"upstream", &UpstreamServiceError{Service: "ocr", StatusCode: 503}, KindUpstream},
		{"inference", &ModelInferenceError{Backend: "ollama", Err: cause}, KindModelInference},
		{"wrapped", fmt.Errorf("classify: %w", &ModelInferenceError{Backend: "remote", Err: cause}), KindModelInference},
		{"untyped", cause, KindInternal},
		{"nil", nil, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&InvalidRequestError{Reason: "missing url"}, "invalid request: missing url"},
		{&InsufficientContentError{Length: 4}, "insufficient content: 4 characters after normalization"},
		{&InsufficientContentError{Reason: "empty file"}, "insufficient content: empty file"},
		{&UnsupportedFormatError{Filename: "a.odt"}, `unsupported format "a.odt": use PDF, DOCX or TXT`},
		{&UpstreamServiceError{Service: "ocr.space", StatusCode: 429}, "ocr.space returned status 429"},
		{&UpstreamServiceError{Service: "scraper", Err: errors.New("timeout")}, "scraper request failed: timeout"},
		{&ModelInferenceError{Backend: "lexical", Err: errors.New("nan")}, "model inference failed (lexical): nan"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestErrorsUnwrap(t *testing.T) {
	assert.ErrorIs(t, &ExtractionError{Format: "docx", Err: context.Canceled}, context.Canceled)
	assert.ErrorIs(t, &UpstreamServiceError{Service: "feed", Err: context.DeadlineExceeded}, context.DeadlineExceeded)
	assert.ErrorIs(t, &ModelInferenceError{Backend: "openai", Err: context.DeadlineExceeded}, context.DeadlineExceeded)
}

func TestClassificationInputIsEmpty(t *testing.T) {
	assert.True(t, ClassificationInput{}.IsEmpty())
	assert.False(t, ClassificationInput{Description: "resumen"}.IsEmpty())

	a := &Article{Title: "t", Content: "c", Description: "d"}
	assert.Equal(t, ClassificationInput{Title: "t", Body: "c", Description: "d"}, a.Input())
}
