package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/zombar/truthlens/internal/database"
	"github.com/zombar/truthlens/internal/feed"
	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/scraper"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// handleStats returns the analysis counters
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Stats == nil {
		respondMessage(w, "statistics are not configured", http.StatusServiceUnavailable)
		return
	}

	snapshot, err := h.deps.Stats.Snapshot(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, snapshot, http.StatusOK)
}

// handleListPredictions pages through stored predictions, newest first
func (h *Handler) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		respondMessage(w, "prediction history is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := defaultPageSize
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, maxPageSize)
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	predictions, err := h.deps.Store.ListPredictions(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	total, err := h.deps.Store.CountPredictions(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, map[string]any{
		"predictions": predictions,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	}, http.StatusOK)
}

// handleGetPrediction returns one stored prediction
func (h *Handler) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		respondMessage(w, "prediction history is not configured", http.StatusServiceUnavailable)
		return
	}

	prediction, err := h.deps.Store.GetPrediction(r.Context(), r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(w, "prediction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, prediction, http.StatusOK)
}

type jobRequest struct {
	URL   string         `json:"url"`
	Kind  models.JobKind `json:"kind"`
	Limit int            `json:"limit"`
}

// handleCreateJob queues a URL or feed for the worker
func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil || h.deps.Queue == nil {
		respondMessage(w, "async jobs are not configured", http.StatusServiceUnavailable)
		return
	}

	var body jobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, r, &models.InvalidRequestError{Reason: "invalid request body"})
		return
	}
	if body.Kind == "" {
		body.Kind = models.JobKindURL
	}
	if body.Kind != models.JobKindURL && body.Kind != models.JobKindFeed {
		h.respondError(w, r, &models.InvalidRequestError{Reason: fmt.Sprintf("unknown job kind %q", body.Kind)})
		return
	}
	u, err := scraper.ParseURL(body.URL)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	job := &models.Job{
		ID:     uuid.NewString(),
		Kind:   body.Kind,
		URL:    u.String(),
		Status: models.JobQueued,
	}
	ctx := r.Context()
	if err := h.deps.Store.CreateJob(ctx, job); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.enqueue(ctx, job, body.Limit); err != nil {
		job.Status = models.JobFailed
		job.Error = err.Error()
		if updateErr := h.deps.Store.UpdateJob(context.WithoutCancel(ctx), job); updateErr != nil {
			h.deps.Logger.Error("failed to mark job failed", "job_id", job.ID, "error", updateErr)
		}
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
		"kind":   job.Kind,
		"url":    job.URL,
	}, http.StatusAccepted)
}

func (h *Handler) enqueue(ctx context.Context, job *models.Job, limit int) error {
	var err error
	switch job.Kind {
	case models.JobKindFeed:
		_, err = h.deps.Queue.EnqueueClassifyFeed(ctx, job.ID, job.URL, feed.ClampLimit(limit))
	default:
		_, err = h.deps.Queue.EnqueueClassifyURL(ctx, job.ID, job.URL)
	}
	return err
}

// handleGetJob reports a job's status, with its predictions once completed
func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		respondMessage(w, "async jobs are not configured", http.StatusServiceUnavailable)
		return
	}

	job, err := h.deps.Store.GetJob(r.Context(), r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response := map[string]any{"job": job}
	if job.Status == models.JobCompleted {
		predictions := make([]*models.Prediction, 0, len(job.PredictionIDs))
		for _, id := range job.PredictionIDs {
			p, err := h.deps.Store.GetPrediction(r.Context(), id)
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			if err != nil {
				h.respondError(w, r, err)
				return
			}
			predictions = append(predictions, p)
		}
		response["predictions"] = predictions
	}

	respondJSON(w, response, http.StatusOK)
}
