package models

import "time"

// Label is the outcome of a classification
type Label string

const (
	LabelReal  Label = "REAL"
	LabelFake  Label = "FAKE"
	LabelError Label = "ERROR"
)

// ConfidenceTier buckets the margin between the two class probabilities
type ConfidenceTier string

const (
	TierLow    ConfidenceTier = "LOW"
	TierMedium ConfidenceTier = "MEDIUM"
	TierHigh   ConfidenceTier = "HIGH"
)

// Source identifies how the content reached the pipeline
type Source string

const (
	SourceManual Source = "Manual"
	SourceFile   Source = "File"
	SourceOCR    Source = "OCR"
	SourceURL    Source = "URL"
	SourceFeed   Source = "Feed"
)

// ClassificationInput is the raw content of a single news item
type ClassificationInput struct {
	Title       string `json:"title,omitempty"`
	Body        string `json:"body,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsEmpty reports whether every field is blank
func (in ClassificationInput) IsEmpty() bool {
	return in.Title == "" && in.Body == "" && in.Description == ""
}

// RawScore is the uncalibrated output of a classifier
type RawScore struct {
	ProbabilityFake float64 `json:"probability_fake"`
	ProbabilityTrue float64 `json:"probability_true"`
}

// Decision is the calibrated verdict derived from a RawScore
type Decision struct {
	Label                 Label          `json:"label"`
	Confidence            float64        `json:"confidence"`
	ProbabilityFake       float64        `json:"probability_fake"`
	ProbabilityTrue       float64        `json:"probability_true"`
	ThresholdUsed         float64        `json:"threshold_used"`
	RawLabel              Label          `json:"raw_label"`
	ConfidenceTier        ConfidenceTier `json:"confidence_tier"`
	ProbabilityDifference float64        `json:"probability_difference"`
	CalibrationApplied    bool           `json:"calibration_applied"`
}

// Article holds the fields scraped from a news web page
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	PublishDate string    `json:"publish_date"`
	Images      []string  `json:"images"`
	Keywords    []string  `json:"keywords"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Input converts the scraped fields into a classifier input
func (a *Article) Input() ClassificationInput {
	return ClassificationInput{
		Title:       a.Title,
		Body:        a.Content,
		Description: a.Description,
	}
}

// Prediction is a stored classification outcome
type Prediction struct {
	ID              string         `json:"id"`
	Source          Source         `json:"source"`
	SourceRef       string         `json:"source_ref,omitempty"` // URL or file name
	Prediction      string         `json:"prediction"`
	ProbabilityFake float64        `json:"probability_fake"`
	ProbabilityTrue float64        `json:"probability_true"`
	Confidence      float64        `json:"confidence"`
	ConfidenceTier  ConfidenceTier `json:"confidence_tier"`
	ThresholdUsed   float64        `json:"threshold_used"`
	Recommendation  string         `json:"recommendation"`
	Preview         string         `json:"preview"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ModelInfo describes the classifier backend serving requests
type ModelInfo struct {
	Type    string `json:"type"`
	Backend string `json:"backend"`
}

// DailyStats holds the analysis counters for one calendar day (YYYY-MM-DD)
type DailyStats struct {
	Date           string `json:"date"`
	Analyzed       int64  `json:"analyzed"`
	Fakes          int64  `json:"fakes"`
	HighConfidence int64  `json:"high_confidence"`
}

// StatsSnapshot summarizes the counters as of one moment
type StatsSnapshot struct {
	Total          int64 `json:"total"`
	TotalToday     int64 `json:"total_today"`
	TotalFakes     int64 `json:"total_fakes"`
	FakesToday     int64 `json:"fakes_today"`
	HighConfidence int64 `json:"high_confidence"`
}

// JobKind is the type of work an async job performs
type JobKind string

const (
	JobKindURL  JobKind = "url"
	JobKindFeed JobKind = "feed"
)

// JobStatus tracks an async job through the worker
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is an asynchronous URL or feed classification
type Job struct {
	ID            string    `json:"id"`
	Kind          JobKind   `json:"kind"`
	URL           string    `json:"url"`
	Status        JobStatus `json:"status"`
	PredictionIDs []string  `json:"prediction_ids"`
	Error         string    `json:"error,omitempty"`
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
