package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pregnancy-guide-go/internal/core"
)

// Context keys set by RequireSession.
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
)

// StateReader is the part of the store RequireSession looks at.
type StateReader interface {
	State() core.State
}

// RequireSession rejects requests unless the store holds an authenticated
// session. The user id and email are copied into the Gin context.
func RequireSession(store StateReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := store.State().Session
		switch session.Status {
		case core.AuthAuthenticated:
		case core.AuthPending:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Session is still initializing"})
			return
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Please sign in to continue"})
			return
		}

		c.Set(ContextUserID, session.UserID)
		c.Set(ContextUserEmail, session.Email)
		c.Next()
	}
}
