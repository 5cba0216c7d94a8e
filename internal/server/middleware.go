package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/pt-nexus/webgate/internal/auth"
)

const (
	headerRequestID = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestIDMiddleware tags every request with a ULID, reusing one supplied by
// the caller.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = ulid.Make().String()
			c.Request.Header.Set(headerRequestID, id)
		}
		c.Set(requestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the request ID assigned by requestIDMiddleware
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		event := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Str("auth", bearerState(c.GetHeader(auth.HeaderAuthorization))).
			Msg("HTTP request")
	}
}

// bearerState classifies an Authorization header for the access log without
// logging the credential itself
func bearerState(header string) string {
	_, err := auth.ExtractBearerToken(header)
	switch {
	case err == nil:
		return "bearer"
	case errors.Is(err, auth.ErrMissingAuthHeader):
		return "none"
	case errors.Is(err, auth.ErrEmptyToken):
		return "empty"
	default:
		return "invalid"
	}
}

func respondWithError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"success": false, "error": message})
	c.Abort()
}
