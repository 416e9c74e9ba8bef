package services

import (
	"context"
	"sync"
	"time"

	"learnus-backend/internal/learnus"
)

type sessionEntry struct {
	session   *learnus.Session
	expiresAt time.Time
}

// SessionResolver turns a signed token into a live Session. Sessions are
// cached per process, keyed by the exact token string; any other process
// holding the same token reconstructs an equivalent session with one extra
// login round trip. Entry expiry mirrors the token's own expiry.
type SessionResolver struct {
	tokens *TokenService
	auth   Authenticator

	mu      sync.Mutex
	entries map[string]sessionEntry
	now     func() time.Time
}

func NewSessionResolver(tokens *TokenService, auth Authenticator) *SessionResolver {
	return &SessionResolver{
		tokens:  tokens,
		auth:    auth,
		entries: make(map[string]sessionEntry),
		now:     time.Now,
	}
}

// Resolve verifies the token and returns its session. Guest tokens resolve to
// a nil session. On a cache miss the embedded credentials are replayed
// through the Authenticator; if they no longer authenticate the token is
// treated as invalid; there is no retry.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*learnus.Session, *TokenClaims, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, nil, err
	}
	if claims.Guest {
		return nil, claims, nil
	}

	r.mu.Lock()
	if entry, ok := r.entries[token]; ok && r.now().Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.session, claims, nil
	}
	r.mu.Unlock()

	// The lock is not held across the login, so concurrent resolves of the
	// same cold token may log in twice. Last insert wins; both sessions are
	// equivalent.
	sess, err := r.auth.Login(ctx, claims.Subject, claims.Secret)
	if err != nil {
		return nil, nil, &learnus.AuthError{Step: learnus.StepCredentials, Message: "embedded credentials no longer authenticate"}
	}

	r.insert(token, sess, claims.ExpiresAt.Time)
	return sess, claims, nil
}

// Store caches a freshly authenticated session under an already issued token,
// saving the first Resolve in this process a redundant login.
func (r *SessionResolver) Store(token string, sess *learnus.Session) error {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return err
	}
	r.insert(token, sess, claims.ExpiresAt.Time)
	return nil
}

// Drop removes the cached session for a token (logout).
func (r *SessionResolver) Drop(token string) {
	r.mu.Lock()
	delete(r.entries, token)
	r.mu.Unlock()
}

func (r *SessionResolver) insert(token string, sess *learnus.Session, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Opportunistic purge on insert keeps reads O(1).
	for tok, entry := range r.entries {
		if !r.now().Before(entry.expiresAt) {
			delete(r.entries, tok)
		}
	}
	r.entries[token] = sessionEntry{session: sess, expiresAt: expiresAt}
}
