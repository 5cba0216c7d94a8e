package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can learn from a token without the signing key
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Expired reports whether the token's exp claim is at or before now
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Inspect decodes a JWT without verifying its signature. Verification is the
// backend's job; the client only reads the registered claims.
func Inspect(tokenString string) (*TokenInfo, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	info := &TokenInfo{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Usable reports whether token is worth presenting. Tokens are opaque to the
// client: any non-empty string counts, except a JWT whose exp has passed.
func Usable(token string, now time.Time) bool {
	if token == "" {
		return false
	}

	info, err := Inspect(token)
	if err != nil {
		return true
	}
	return !info.Expired(now)
}
