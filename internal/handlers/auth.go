package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"learnus-backend/internal/learnus"
	"learnus-backend/internal/middleware"
	"learnus-backend/internal/models"
	"learnus-backend/internal/services"
)

type AuthHandler struct {
	tokens   *services.TokenService
	auth     services.Authenticator
	sessions *services.SessionResolver
	cache    *services.ActivityCache
}

func NewAuthHandler(tokens *services.TokenService, auth services.Authenticator, sessions *services.SessionResolver, cache *services.ActivityCache) *AuthHandler {
	return &AuthHandler{tokens: tokens, auth: auth, sessions: sessions, cache: cache}
}

// Login authenticates against the LMS and returns a signed session token.
// The fresh session is cached under the token so the first authenticated
// call in this process skips a redundant login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Identity == "" || req.Secret == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "identity and secret are required", r))
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Identity, req.Secret)
	if err != nil {
		log.Printf("login failed for %s: %v", req.Identity, err)
		writeJSON(w, http.StatusBadRequest, errorResp("LOGIN_FAILED", "Login failed. Check your identity and secret.", r))
		return
	}

	token, err := h.tokens.Issue(req.Identity, req.Secret)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.sessions.Store(token, sess); err != nil {
		log.Printf("failed to pre-warm session for %s: %v", req.Identity, err)
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{Token: token})
}

// GuestLogin issues a credential-free token for guest-only operations.
func (h *AuthHandler) GuestLogin(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.IssueGuest()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TokenResponse{Token: token})
}

// Ping validates the token; the middleware has already done the work.
func (h *AuthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

// Logout discards this process's cached state for the token. Other processes
// keep their own copies until they age out, which is safe: cached values are
// re-derivations, not authoritative state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFrom(r.Context())
	h.sessions.Drop(token)
	if claims := middleware.ClaimsFrom(r.Context()); claims != nil && !claims.Guest {
		h.cache.DropIdentity(claims.Subject)
	}
	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

func sessionFrom(r *http.Request) *learnus.Session {
	return middleware.SessionFrom(r.Context())
}
