// Package auth provides bearer token sources for the remote API.
//
// Tokens are short-lived, so callers resolve a token for every request
// instead of holding on to one.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the shortest HMAC secret accepted by Signer.
const MinSecretLen = 32

// TokenSource yields a bearer token. An empty token with a nil error means
// the user is not signed in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Static returns a source that always yields token.
func Static(token string) TokenSource {
	return TokenFunc(func(context.Context) (string, error) { return token, nil })
}

// Disabled returns a source that never yields a token.
func Disabled() TokenSource {
	return Static("")
}

// Signer mints a fresh HS256 JWT on every call.
type Signer struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner creates a Signer for subject.
func NewSigner(secret []byte, subject string, ttl time.Duration) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("auth: secret must be at least %d bytes", MinSecretLen)
	}
	if subject == "" {
		return nil, errors.New("auth: subject is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Signer{secret: secret, subject: subject, ttl: ttl, now: time.Now}, nil
}

// Token returns a newly signed token.
func (s *Signer) Token(_ context.Context) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   s.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token minted by a Signer with the same secret and returns its subject.
// Only HS256 is accepted.
func Verify(secret []byte, tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token")
	}
	return claims.Subject, nil
}
