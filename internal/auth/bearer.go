package auth

import (
	"errors"
	"strings"
)

const (
	// HeaderAuthorization is the request header carrying the credential
	HeaderAuthorization = "Authorization"

	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
)

// BearerValue formats token as an Authorization header value
func BearerValue(token string) string {
	return bearerPrefix + token
}

// ExtractBearerToken returns the token carried by an Authorization header value
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}
