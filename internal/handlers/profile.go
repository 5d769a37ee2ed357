package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/techtrust/backend/internal/services"
	"github.com/techtrust/backend/internal/store"
	"github.com/techtrust/backend/types"
)

// ProfileHandler provides HTTP handlers for professional profiles.
type ProfileHandler struct {
	profileService *services.ProfileService
	authService    *services.AuthService
}

func NewProfileHandler(profileService *services.ProfileService, authService *services.AuthService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		authService:    authService,
	}
}

// ProfileRouter registers profile routes on the given router. All routes
// require authentication.
func ProfileRouter(r chi.Router, profileService *services.ProfileService, authService *services.AuthService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewProfileHandler(profileService, authService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListProfiles)
	r.Post("/", handler.CreateProfile)
	r.Get("/me", handler.MyProfile)
	r.Get("/{profileID}", handler.GetProfile)
	r.Put("/{profileID}", handler.UpdateProfile)
	r.Get("/user/{userUID}", handler.GetUser)
}

// ProfileUpsertRequest is the create/update payload.
type ProfileUpsertRequest struct {
	Skills     string `json:"skills"`
	Experience string `json:"experience"`
	ClaimText  string `json:"claimText"`
	TrustScore string `json:"currentTrustScore"`
	JobTitle   string `json:"jobTitle"`
	Location   string `json:"location"`
}

func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profileService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Skills) == "" || strings.TrimSpace(req.Experience) == "" ||
		strings.TrimSpace(req.ClaimText) == "" || strings.TrimSpace(req.TrustScore) == "" {
		writeError(w, http.StatusBadRequest, "skills, experience, claimText and currentTrustScore are required")
		return
	}

	subject, err := subjectFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.profileService.Create(r.Context(), types.Profile{
		UserUID:    subject,
		Skills:     req.Skills,
		Experience: req.Experience,
		ClaimText:  req.ClaimText,
		TrustScore: req.TrustScore,
		JobTitle:   req.JobTitle,
		Location:   req.Location,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "profile already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// MyProfile returns the profile bound to the authenticated account.
func (h *ProfileHandler) MyProfile(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.profileService.GetByUserUID(r.Context(), subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "profileID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profileService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "profileID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ProfileUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	current, err := h.profileService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	applyProfileUpdate(&current, req)
	updated, err := h.profileService.Update(r.Context(), current)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GetUser returns the public account projection behind a profile.
func (h *ProfileHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(chi.URLParam(r, "userUID"))
	if uid == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	account, err := h.authService.GetByUID(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func applyProfileUpdate(profile *types.Profile, req ProfileUpsertRequest) {
	if strings.TrimSpace(req.Skills) != "" {
		profile.Skills = req.Skills
	}
	if strings.TrimSpace(req.Experience) != "" {
		profile.Experience = req.Experience
	}
	if strings.TrimSpace(req.ClaimText) != "" {
		profile.ClaimText = req.ClaimText
	}
	if strings.TrimSpace(req.TrustScore) != "" {
		profile.TrustScore = req.TrustScore
	}
	if strings.TrimSpace(req.JobTitle) != "" {
		profile.JobTitle = req.JobTitle
	}
	if strings.TrimSpace(req.Location) != "" {
		profile.Location = req.Location
	}
}

func parseID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + param)
	}
	return id, nil
}
