package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"learnus-backend/internal/learnus"
	"learnus-backend/internal/services"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	claimsKey  contextKey = "claims"
	tokenKey   contextKey = "token"
)

// TokenHeader carries the session token on every authenticated call.
const TokenHeader = "X-Auth-Token"

type TokenAuth struct {
	resolver *services.SessionResolver
}

func NewTokenAuth(resolver *services.SessionResolver) *TokenAuth {
	return &TokenAuth{resolver: resolver}
}

// Middleware verifies the token, resolves it to a session (nil for guest
// tokens) and attaches token, claims and session to the request context.
func (t *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TokenHeader)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing token", r)
			return
		}

		sess, claims, err := t.resolver.Resolve(r.Context(), token)
		if err != nil {
			var tokenErr *services.TokenError
			if errors.As(err, &tokenErr) && tokenErr.Reason == services.TokenExpired {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
				return
			}
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		ctx = context.WithValue(ctx, claimsKey, claims)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFrom returns the resolved session, nil for guest tokens.
func SessionFrom(ctx context.Context) *learnus.Session {
	sess, _ := ctx.Value(sessionKey).(*learnus.Session)
	return sess
}

func ClaimsFrom(ctx context.Context) *services.TokenClaims {
	claims, _ := ctx.Value(claimsKey).(*services.TokenClaims)
	return claims
}

func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
