package api

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/store"
)

const (
	// SessionTokenHeader carries the session token when no Authorization
	// header is present.
	SessionTokenHeader = "X-Session-Token"

	// userIDKey is the gin context key holding the authenticated user ID.
	userIDKey = "user_id"
)

// SessionAuth validates the caller's session token and stores the resolved
// user ID in the request context. Every failure is a uniform 401; the body
// never says why.
func SessionAuth(s store.Store, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			unauthorized(c, logger, "missing session token")
			return
		}

		session, err := s.GetSession(c.Request.Context(), token)
		if err != nil {
			if stderrors.Is(err, store.ErrNotFound) {
				unauthorized(c, logger, "unknown session token")
				return
			}
			logger.ErrorWithContext(c.Request.Context(), "session lookup failed", "error", err.Error())
			unauthorized(c, logger, "session lookup failed")
			return
		}
		if session.Expired(time.Now()) {
			unauthorized(c, logger, "expired session token")
			return
		}

		logger.Audit(logging.NewAuditEvent(logging.SessionAuthSuccess, logging.StatusSuccess).
			WithUser(session.UserID).
			WithIP(c.ClientIP()).
			WithDetail("path", c.Request.URL.Path))

		c.Set(userIDKey, session.UserID)
		c.Next()
	}
}

// sessionToken extracts the token from Authorization: Bearer or the session
// header.
func sessionToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	return strings.TrimSpace(c.GetHeader(SessionTokenHeader))
}

func unauthorized(c *gin.Context, logger *logging.Logger, reason string) {
	logger.Audit(logging.NewAuditEvent(logging.SessionAuthFailure, logging.StatusFailure).
		WithIP(c.ClientIP()).
		WithDetail("reason", reason).
		WithDetail("path", c.Request.URL.Path).
		WithDetail("method", c.Request.Method))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

// currentUserID returns the authenticated user ID set by SessionAuth.
func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
