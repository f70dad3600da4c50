package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/truthlens/internal/models"
)

const predictionColumns = `id, source, source_ref, prediction, probability_fake, probability_true,
	confidence, confidence_tier, threshold_used, recommendation, preview, created_at`

// SavePrediction stores a classification outcome
func (db *DB) SavePrediction(ctx context.Context, p *models.Prediction) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO predictions (`+predictionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, string(p.Source), p.SourceRef, p.Prediction, p.ProbabilityFake, p.ProbabilityTrue,
		p.Confidence, string(p.ConfidenceTier), p.ThresholdUsed, p.Recommendation, p.Preview, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row rowScanner) (*models.Prediction, error) {
	var (
		p      models.Prediction
		source string
		tier   string
	)
	err := row.Scan(&p.ID, &source, &p.SourceRef, &p.Prediction, &p.ProbabilityFake, &p.ProbabilityTrue,
		&p.Confidence, &tier, &p.ThresholdUsed, &p.Recommendation, &p.Preview, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Source = models.Source(source)
	p.ConfidenceTier = models.ConfidenceTier(tier)
	return &p, nil
}

// GetPrediction retrieves a prediction by ID
func (db *DB) GetPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = $1`, id)
	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// ListPredictions returns predictions newest first
func (db *DB) ListPredictions(ctx context.Context, limit, offset int) ([]*models.Prediction, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+predictionColumns+`
		FROM predictions
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	predictions := []*models.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// CountPredictions returns the number of stored predictions
func (db *DB) CountPredictions(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// AddDailyStats adds per-day increments to the stored counters
func (db *DB) AddDailyStats(ctx context.Context, deltas []models.DailyStats) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range deltas {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_stats (date, analyzed, fakes, high_confidence)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (date) DO UPDATE SET
				analyzed = daily_stats.analyzed + excluded.analyzed,
				fakes = daily_stats.fakes + excluded.fakes,
				high_confidence = daily_stats.high_confidence + excluded.high_confidence
		`, d.Date, d.Analyzed, d.Fakes, d.HighConfidence)
		if err != nil {
			return fmt.Errorf("failed to save stats for %s: %w", d.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadDailyStats returns every stored day in date order
func (db *DB) LoadDailyStats(ctx context.Context) ([]models.DailyStats, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT date, analyzed, fakes, high_confidence
		FROM daily_stats
		ORDER BY date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}
	defer rows.Close()

	var days []models.DailyStats
	for rows.Next() {
		var d models.DailyStats
		if err := rows.Scan(&d.Date, &d.Analyzed, &d.Fakes, &d.HighConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// CreateJob stores a new job in the queued state
func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobQueued
	}

	ids, err := json.Marshal(nonNil(job.PredictionIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal prediction ids: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, url, status, prediction_ids, error, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.ID, string(job.Kind), job.URL, string(job.Status), string(ids), job.Error, job.Attempts,
		job.CreatedAt.UTC(), job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// UpdateJob writes the mutable fields of a job
func (db *DB) UpdateJob(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = time.Now().UTC()

	ids, err := json.Marshal(nonNil(job.PredictionIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal prediction ids: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, prediction_ids = $2, error = $3, attempts = $4, updated_at = $5
		WHERE id = $6
	`, string(job.Status), string(ids), job.Error, job.Attempts, job.UpdatedAt, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob retrieves a job by ID
func (db *DB) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var (
		job    models.Job
		kind   string
		status string
		ids    string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, kind, url, status, prediction_ids, error, attempts, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`, id).Scan(&job.ID, &kind, &job.URL, &status, &ids, &job.Error, &job.Attempts, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Kind = models.JobKind(kind)
	job.Status = models.JobStatus(status)
	if err := json.Unmarshal([]byte(ids), &job.PredictionIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prediction ids: %w", err)
	}
	return &job, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
