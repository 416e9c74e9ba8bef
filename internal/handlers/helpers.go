package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"learnus-backend/internal/learnus"
	"learnus-backend/internal/models"
	"learnus-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// handleServiceError maps the typed error taxonomy onto HTTP statuses.
// Messages stay generic so protocol internals never leak to callers.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tokenErr *services.TokenError
	var authErr *learnus.AuthError
	var fetchErr *learnus.FetchError
	var mediaErr *services.MediaError

	switch {
	case errors.As(err, &tokenErr):
		code := "UNAUTHORIZED"
		if tokenErr.Reason == services.TokenExpired {
			code = "TOKEN_EXPIRED"
		}
		writeJSON(w, http.StatusUnauthorized, errorResp(code, "Invalid or expired token", r))
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Unauthorized", r))
	case errors.As(err, &fetchErr):
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Failed to fetch data from LearnUs", r))
	case errors.As(err, &mediaErr):
		writeJSON(w, http.StatusInternalServerError, errorResp("MEDIA_ERROR", mediaErr.Message, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// requireSession returns the non-guest session on the request, or writes a
// 401 and returns nil for guest tokens.
func requireSession(w http.ResponseWriter, r *http.Request) *learnus.Session {
	sess := sessionFrom(r)
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "A guest session cannot access this resource", r))
	}
	return sess
}
