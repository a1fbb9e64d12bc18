package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/persistence"
	"github.com/wonny/vertex/pkg/logger"
)

// RunHandler serves pipeline run results
// ⭐ SSOT: 런 조회 API 핸들러는 이 구조체에서만
type RunHandler struct {
	runRepo       contracts.RunRepository
	candidateRepo contracts.CandidateRepository
	logger        *logger.Logger
}

// NewRunHandler creates a run handler
func NewRunHandler(runRepo contracts.RunRepository, candidateRepo contracts.CandidateRepository, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runRepo:       runRepo,
		candidateRepo: candidateRepo,
		logger:        log,
	}
}

// ListRuns returns recent runs, newest first
// GET /api/runs?limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := h.runRepo.ListRuns(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns one run with its summary and error list
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	run, summary, err := h.runRepo.GetRun(ctx, runID)
	if errors.Is(err, persistence.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run":     run,
		"summary": summary,
	})
}

// GetSelection returns the final ranked candidates of a run
// GET /api/runs/{id}/selection
func (h *RunHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	selected, err := h.candidateRepo.GetSelection(ctx, runID)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to get selection")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve selection")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     runID,
		"candidates": selected,
		"count":      len(selected),
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
