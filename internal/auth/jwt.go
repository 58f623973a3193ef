// Package auth implements the two request-gating mechanisms: bearer session
// tokens asserting an authenticated admin identity, and the static gateway
// key required on externally reachable routes.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the single failure mode of token verification. A
// missing bearer prefix, malformed token, expired token and bad signature
// are deliberately indistinguishable so the response cannot be used as an
// oracle.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims binds a session token to exactly one user.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// TokenAuthority issues and verifies session tokens. The signing secret is
// process-wide configuration; rotating it invalidates every outstanding
// token, which is acceptable since no refresh mechanism exists.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenAuthority creates a token authority with the given signing secret
// and validity window.
func NewTokenAuthority(secret string, ttl time.Duration) *TokenAuthority {
	return &TokenAuthority{secret: []byte(secret), ttl: ttl}
}

// Issue produces a signed HS256 token for the given user.
func (a *TokenAuthority) Issue(userID, username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		UserID:   userID,
		Username: username,
	})
	return token.SignedString(a.secret)
}

// Verify parses and validates a token and returns the user id it asserts.
// Verification fails closed: every invalid input maps to ErrInvalidToken.
func (a *TokenAuthority) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}
