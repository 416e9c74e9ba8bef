package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenExpired          = "expired"
	TokenMalformed        = "malformed"
	TokenSignatureInvalid = "signature_invalid"
)

// TokenError reports why a token failed verification. It is distinct from an
// authentication failure so callers can tell "your token is stale" apart from
// "re-authenticate".
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string { return "invalid token: " + e.Reason }

const GuestSubject = "guest"

// TokenClaims is the signed, stateless token payload. The plaintext secret is
// embedded (signed but NOT encrypted) so any worker process holding the same
// signing key can lazily re-run the login. Possession of the token or the key
// exposes the credential. That is a deliberate, documented trust assumption
// of the design, not an oversight.
type TokenClaims struct {
	Secret string `json:"pwd"`
	Guest  bool   `json:"guest"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256-signed session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *TokenService) Issue(identity, secret string) (string, error) {
	return s.issue(identity, secret, false)
}

func (s *TokenService) IssueGuest() (string, error) {
	return s.issue(GuestSubject, "", true)
}

func (s *TokenService) issue(subject, secret string, guest bool) (string, error) {
	now := s.now()
	claims := TokenClaims{
		Secret: secret,
		Guest:  guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the decoded claims or a TokenError.
func (s *TokenService) Verify(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, &TokenError{Reason: TokenExpired}
		case errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, &TokenError{Reason: TokenSignatureInvalid}
		default:
			return nil, &TokenError{Reason: TokenMalformed}
		}
	}
	if !parsed.Valid {
		return nil, &TokenError{Reason: TokenMalformed}
	}

	// Invariant: the secret is empty if and only if the token is a guest token.
	if (claims.Secret == "") != claims.Guest {
		return nil, &TokenError{Reason: TokenMalformed}
	}
	return claims, nil
}
