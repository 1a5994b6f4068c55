package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/pipeline"
	"github.com/wisetech/rras/internal/store"
	"github.com/wisetech/rras/pkg/logger"
)

// Pipeline is the orchestration surface the handler drives.
type Pipeline interface {
	LaunchRun(ctx context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error)
	Approve(ctx context.Context, snapshotID int64, approvedBy string) error
}

// RunReader reads run lifecycle rows.
type RunReader interface {
	GetByID(ctx context.Context, id int64) (*domain.SnapshotRun, error)
	List(ctx context.Context, limit int) ([]domain.SnapshotRun, error)
}

// MetricReader reads the calculated metrics of a run.
type MetricReader interface {
	ListMetrics(ctx context.Context, snapshotID int64) ([]domain.RegulatoryMetric, error)
}

// AuditReader reads the audit trail of a run.
type AuditReader interface {
	ListAudit(ctx context.Context, snapshotID int64) ([]domain.CalculationAudit, error)
}

// RunHandler handles the run lifecycle API endpoints.
type RunHandler struct {
	pipeline Pipeline
	runs     RunReader
	metrics  MetricReader
	audits   AuditReader
	logger   *logger.Logger
}

// NewRunHandler creates a new run handler.
func NewRunHandler(pl Pipeline, runs RunReader, metrics MetricReader, audits AuditReader, log *logger.Logger) *RunHandler {
	return &RunHandler{
		pipeline: pl,
		runs:     runs,
		metrics:  metrics,
		audits:   audits,
		logger:   log,
	}
}

// LaunchRequest is the body of a manual run launch.
type LaunchRequest struct {
	ReportingDate string `json:"reporting_date"`
	Frequency     string `json:"frequency"`
	InitiatedBy   string `json:"initiated_by"`
}

// LaunchResponse reports the outcome of a completed launch.
type LaunchResponse struct {
	SnapshotID      int64    `json:"snapshot_id"`
	CorrelationID   string   `json:"correlation_id"`
	CompletedStages []string `json:"completed_stages"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// Launch starts a calculation run for a reporting date.
// POST /api/v1/runs
func (h *RunHandler) Launch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reportingDate, err := time.Parse("2006-01-02", req.ReportingDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid reporting_date (expected YYYY-MM-DD)")
		return
	}

	frequency, ok := domain.ParseFrequency(req.Frequency)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid frequency (valid: PERIODIC, MONTHLY, ANNUAL)")
		return
	}

	initiatedBy := req.InitiatedBy
	if initiatedBy == "" {
		initiatedBy = "api"
	}

	result, err := h.pipeline.LaunchRun(ctx, pipeline.RunConfig{
		ReportingDate: reportingDate,
		Frequency:     frequency,
		InitiatedBy:   initiatedBy,
		CorrelationID: uuid.NewString(),
	})
	if errors.Is(err, pipeline.ErrRunInFlight) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Run launch failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, LaunchResponse{
		SnapshotID:      result.SnapshotID,
		CorrelationID:   result.CorrelationID,
		CompletedStages: result.CompletedStages,
		DurationSeconds: result.Duration.Seconds(),
	})
}

// List returns recent runs, newest first.
// GET /api/v1/runs?limit=20
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			respondError(w, http.StatusBadRequest, "Invalid limit (1-200)")
			return
		}
		limit = parsed
	}

	runs, err := h.runs.List(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// Get returns one run.
// GET /api/v1/runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.GetByID(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// Metrics returns the calculated metrics of a run.
// GET /api/v1/runs/{id}/metrics
func (h *RunHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.runs.GetByID(ctx, id); errors.Is(err, store.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	} else if err != nil {
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	metrics, err := h.metrics.ListMetrics(ctx, id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list metrics")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id": id,
		"metrics":     metrics,
		"count":       len(metrics),
	})
}

// Audit returns the audit trail of a run in execution order.
// GET /api/v1/runs/{id}/audit
func (h *RunHandler) Audit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.runs.GetByID(ctx, id); errors.Is(err, store.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	} else if err != nil {
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	entries, err := h.audits.ListAudit(ctx, id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list audit entries")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve audit trail")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id": id,
		"entries":     entries,
		"count":       len(entries),
	})
}

// ApproveRequest is the body of an approval.
type ApproveRequest struct {
	ApprovedBy string `json:"approved_by"`
}

// Approve signs off a CALCULATED run.
// POST /api/v1/runs/{id}/approve
func (h *RunHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ApprovedBy == "" {
		respondError(w, http.StatusBadRequest, "approved_by is required")
		return
	}

	err := h.pipeline.Approve(ctx, id, req.ApprovedBy)
	if errors.Is(err, store.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if errors.Is(err, store.ErrStaleStatus) {
		respondError(w, http.StatusConflict, "Run is not awaiting approval")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to approve run")
		respondError(w, http.StatusInternalServerError, "Failed to approve run")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id": id,
		"status":      domain.StatusApproved,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run id")
		return 0, false
	}
	return id, true
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
