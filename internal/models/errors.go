package models

import (
	"errors"
	"fmt"
)

// ErrorKind names a class of pipeline failure
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindInsufficientContent ErrorKind = "insufficient_content"
	KindUnsupportedFormat   ErrorKind = "unsupported_format"
	KindExtraction          ErrorKind = "extraction_failed"
	KindUpstream            ErrorKind = "upstream_failure"
	KindModelInference      ErrorKind = "model_inference_failure"
	KindInternal            ErrorKind = "internal_error"
)

// KindError is implemented by every typed pipeline error
type KindError interface {
	error
	Kind() ErrorKind
}

// InvalidRequestError reports a malformed request, such as a bad URL
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

func (e *InvalidRequestError) Kind() ErrorKind { return KindInvalidRequest }

// InsufficientContentError reports input too short or empty to classify
type InsufficientContentError struct {
	Reason string
	Length int
}

func (e *InsufficientContentError) Error() string {
	if e.Reason != "" {
		return "insufficient content: " + e.Reason
	}
	return fmt.Sprintf("insufficient content: %d characters after normalization", e.Length)
}

func (e *InsufficientContentError) Kind() ErrorKind { return KindInsufficientContent }

// UnsupportedFormatError reports an upload with an unknown extension
type UnsupportedFormatError struct {
	Filename string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q: use PDF, DOCX or TXT", e.Filename)
}

func (e *UnsupportedFormatError) Kind() ErrorKind { return KindUnsupportedFormat }

// ExtractionError reports a format reader failure
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s text: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Kind() ErrorKind { return KindExtraction }

// UpstreamServiceError reports an OCR or fetch target failure
type UpstreamServiceError struct {
	Service    string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *UpstreamServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error { return e.Err }

func (e *UpstreamServiceError) Kind() ErrorKind { return KindUpstream }

// ModelInferenceError reports a classifier backend failure
type ModelInferenceError struct {
	Backend string
	Err     error
}

func (e *ModelInferenceError) Error() string {
	return fmt.Sprintf("model inference failed (%s): %v", e.Backend, e.Err)
}

func (e *ModelInferenceError) Unwrap() error { return e.Err }

func (e *ModelInferenceError) Kind() ErrorKind { return KindModelInference }

// KindOf returns the kind of a typed error, or KindInternal
func KindOf(err error) ErrorKind {
	var ke KindError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return KindInternal
}
