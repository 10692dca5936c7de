// Package auth inspects session tokens issued by the backend.
//
// Tokens are not verified here: the backend verifies them. The console only reads
// the expiry to stop sending requests which are going to be rejected.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrSessionExpired = errors.New("session expired")

// ExpiresAt returns the expiry of the token.
//
// # Returns
//
// - time.Time: expiry. Zero if the token does not expire.
//
// - error: when the token is not a JWT.
func ExpiresAt(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("malformed session token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// Expired tells whether the token has been expired at now.
//
// Tokens which are not JWT are treated as not expired; the backend decides.
func Expired(token string, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil || exp.IsZero() {
		return false
	}
	return !now.Before(exp)
}
