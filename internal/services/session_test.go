package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"learnus-backend/internal/learnus"
)

type fakeAuthenticator struct {
	mu     sync.Mutex
	logins int
	fail   bool
}

func (f *fakeAuthenticator) Login(ctx context.Context, identity, secret string) (*learnus.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.fail {
		return nil, &learnus.AuthError{Step: learnus.StepCredentials, Message: "rejected"}
	}
	return learnus.NewSession(identity, http.DefaultClient), nil
}

func (f *fakeAuthenticator) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func TestSessionResolver_CachesByToken(t *testing.T) {
	tokens := NewTokenService("test-signing-key", time.Hour)
	auth := &fakeAuthenticator{}
	resolver := NewSessionResolver(tokens, auth)

	token, err := tokens.Issue("user", "pw")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	sess1, _, err := resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("First Resolve failed: %v", err)
	}
	sess2, _, err := resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Second Resolve failed: %v", err)
	}

	if auth.loginCount() != 1 {
		t.Errorf("Expected 1 login, got %d", auth.loginCount())
	}
	if sess1 != sess2 {
		t.Error("Expected both resolves to return the cached session")
	}
	if sess1.Identity() != "user" {
		t.Errorf("Expected identity 'user', got %q", sess1.Identity())
	}
}

func TestSessionResolver_GuestResolvesToNilSession(t *testing.T) {
	tokens := NewTokenService("test-signing-key", time.Hour)
	auth := &fakeAuthenticator{}
	resolver := NewSessionResolver(tokens, auth)

	token, err := tokens.IssueGuest()
	if err != nil {
		t.Fatalf("IssueGuest failed: %v", err)
	}

	sess, claims, err := resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if sess != nil {
		t.Error("Expected nil session for a guest token")
	}
	if claims == nil || !claims.Guest {
		t.Error("Expected guest claims")
	}
	if auth.loginCount() != 0 {
		t.Errorf("Guest resolve must not log in, got %d logins", auth.loginCount())
	}
}

func TestSessionResolver_StaleCredentials(t *testing.T) {
	tokens := NewTokenService("test-signing-key", time.Hour)
	auth := &fakeAuthenticator{fail: true}
	resolver := NewSessionResolver(tokens, auth)

	token, err := tokens.Issue("user", "old-pw")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	sess, _, err := resolver.Resolve(context.Background(), token)
	if sess != nil {
		t.Error("Expected nil session when the replayed login fails")
	}
	var authErr *learnus.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if authErr.Step != learnus.StepCredentials {
		t.Errorf("Expected step %q, got %q", learnus.StepCredentials, authErr.Step)
	}
	if auth.loginCount() != 1 {
		t.Errorf("Expected exactly 1 login attempt (no retry), got %d", auth.loginCount())
	}
}

func TestSessionResolver_DropForcesRelogin(t *testing.T) {
	tokens := NewTokenService("test-signing-key", time.Hour)
	auth := &fakeAuthenticator{}
	resolver := NewSessionResolver(tokens, auth)

	token, err := tokens.Issue("user", "pw")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, _, err := resolver.Resolve(context.Background(), token); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	resolver.Drop(token)
	if _, _, err := resolver.Resolve(context.Background(), token); err != nil {
		t.Fatalf("Resolve after Drop failed: %v", err)
	}

	if auth.loginCount() != 2 {
		t.Errorf("Expected 2 logins after Drop, got %d", auth.loginCount())
	}
}

func TestSessionResolver_StoreSkipsFirstLogin(t *testing.T) {
	tokens := NewTokenService("test-signing-key", time.Hour)
	auth := &fakeAuthenticator{}
	resolver := NewSessionResolver(tokens, auth)

	token, err := tokens.Issue("user", "pw")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	sess := learnus.NewSession("user", http.DefaultClient)
	if err := resolver.Store(token, sess); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, _, err := resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != sess {
		t.Error("Expected the pre-warmed session")
	}
	if auth.loginCount() != 0 {
		t.Errorf("Expected 0 logins after Store, got %d", auth.loginCount())
	}
}

func TestSessionResolver_PurgesExpiredOnInsert(t *testing.T) {
	tokens := NewTokenService("test-signing-key", time.Hour)
	auth := &fakeAuthenticator{}
	resolver := NewSessionResolver(tokens, auth)

	now := time.Now()
	resolver.now = func() time.Time { return now }

	tokenA, _ := tokens.Issue("alice", "pw")
	tokenB, _ := tokens.Issue("bob", "pw")

	if _, _, err := resolver.Resolve(context.Background(), tokenA); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Move the resolver's clock past tokenA's expiry; resolving tokenB
	// inserts a new entry, which purges the stale one.
	now = now.Add(2 * time.Hour)
	if _, _, err := resolver.Resolve(context.Background(), tokenB); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	resolver.mu.Lock()
	_, stale := resolver.entries[tokenA]
	total := len(resolver.entries)
	resolver.mu.Unlock()

	if stale {
		t.Error("Expected the expired entry to be purged on insert")
	}
	if total != 1 {
		t.Errorf("Expected 1 live entry, got %d", total)
	}
}
