package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/techtrust/backend/internal/services"
)

// TrustScoreHandler fronts the external AI scoring service.
type TrustScoreHandler struct {
	trustScoreService *services.TrustScoreService
}

func NewTrustScoreHandler(trustScoreService *services.TrustScoreService) *TrustScoreHandler {
	return &TrustScoreHandler{trustScoreService: trustScoreService}
}

// TrustScoreRouter registers trust-score routes on the given router.
// The health probe is public; predictions require authentication.
func TrustScoreRouter(r chi.Router, trustScoreService *services.TrustScoreService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewTrustScoreHandler(trustScoreService)

	r.Get("/health", handler.Health)
	r.With(authMiddleware).Post("/predict", handler.Predict)
	r.With(authMiddleware).Post("/predict/batch", handler.PredictBatch)
	r.With(authMiddleware).Get("/vetted-pros", handler.VettedProfessionals)
	r.With(authMiddleware).Get("/history", handler.History)
}

// PredictRequest wraps the developer metrics with optional profile fields
// stored alongside the score.
type PredictRequest struct {
	services.DeveloperMetrics
	JobTitle string `json:"jobTitle"`
	Location string `json:"location"`
}

func (h *TrustScoreHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.trustScoreService.Healthy(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, "trust score service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "healthy"})
}

// Predict scores one developer and records the result for the caller.
func (h *TrustScoreHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	subject, err := subjectFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	prediction, err := h.trustScoreService.Predict(r.Context(), subject, req.DeveloperMetrics, req.JobTitle, req.Location)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

// PredictBatch scores multiple developers without recording results.
func (h *TrustScoreHandler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Developers []services.DeveloperMetrics `json:"developers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.trustScoreService.PredictBatch(r.Context(), req.Developers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// VettedProfessionals lists verified professionals with their profiles.
func (h *TrustScoreHandler) VettedProfessionals(w http.ResponseWriter, r *http.Request) {
	pros, err := h.trustScoreService.VettedProfessionals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list vetted professionals")
		return
	}
	writeJSON(w, http.StatusOK, pros)
}

// History returns the caller's vetting results, newest first.
func (h *TrustScoreHandler) History(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	results, err := h.trustScoreService.History(r.Context(), subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load vetting history")
		return
	}
	writeJSON(w, http.StatusOK, results)
}
