package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/techtrust/backend/internal/services"
	"github.com/techtrust/backend/internal/store"
	"github.com/techtrust/backend/types"
)

const (
	maxEvidenceMemory = 16 << 20
	maxEvidenceBytes  = 32 << 20
	formFieldEvidence = "evidence"
)

// ClaimHandler provides HTTP handlers for claims and their evidence files.
type ClaimHandler struct {
	claimService *services.ClaimService
}

func NewClaimHandler(claimService *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{claimService: claimService}
}

// ClaimRouter registers claim routes on the given router. All routes
// require authentication.
func ClaimRouter(r chi.Router, claimService *services.ClaimService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewClaimHandler(claimService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListClaims)
	r.Post("/", handler.CreateClaim)
	r.Delete("/{claimID}", handler.DeleteClaim)
	r.Post("/{claimID}/evidence", handler.UploadEvidence)
	r.Get("/{claimID}/evidence", handler.DownloadEvidence)
}

type ClaimRequest struct {
	Claim string `json:"claim"`
}

func (h *ClaimHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.claimService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *ClaimHandler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Claim) == "" {
		writeError(w, http.StatusBadRequest, "claim text is required")
		return
	}

	claim, err := h.claimService.Create(r.Context(), types.Claim{Text: strings.TrimSpace(req.Claim)})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create claim")
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

func (h *ClaimHandler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "claimID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.claimService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "claim not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete claim")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadEvidence attaches a supporting document to a claim.
func (h *ClaimHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "claimID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxEvidenceMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File[formFieldEvidence]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one evidence file is required")
		return
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read evidence file")
		return
	}
	data, err := readFileLimited(file, maxEvidenceBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claim, err := h.claimService.AttachEvidence(r.Context(), id, fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// DownloadEvidence streams a claim's evidence document.
func (h *ClaimHandler) DownloadEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "claimID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reader, err := h.claimService.OpenEvidence(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func readFileLimited(file io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, errors.New("failed to read file")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}
