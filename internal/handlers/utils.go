package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/techtrust/backend/internal/services"
	"github.com/techtrust/backend/internal/store"
)

type contextKey string

const (
	contextSubjectKey contextKey = "sub"
	contextRoleKey    contextKey = "role"
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func subjectFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	if !ok || strings.TrimSpace(subject) == "" {
		return "", errors.New("missing subject")
	}
	return subject, nil
}

func roleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(contextRoleKey).(string)
	return role
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Anything unmapped becomes a generic 500 so internals never leak.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrInvalidOTP),
		errors.Is(err, services.ErrNoPendingOTP),
		errors.Is(err, services.ErrOTPExpired),
		errors.Is(err, services.ErrScorerRejected):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrVerificationNeeded):
		writeError(w, http.StatusForbidden, "account verification required")
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrNoEvidence),
		errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, "account already verified")
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, "account already exists")
	case errors.Is(err, services.ErrMailNotConfigured),
		errors.Is(err, services.ErrMailUnavailable),
		errors.Is(err, services.ErrScorerUnavailable),
		errors.Is(err, services.ErrStorageNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, services.ErrMailTimeout):
		writeError(w, http.StatusGatewayTimeout, "email service timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
