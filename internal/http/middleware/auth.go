package middleware

import (
	"net/http"
	"strconv"

	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	SessionCookieName = "conduit_session"
	SessionIDHeader   = "X-Session-ID"

	userContextKey    = "current_user"
	sessionContextKey = "session_id"
)

// RequireSession resolves the caller's session from the cookie or the
// header and attaches the user to the request context. Unauthenticated
// requests are rejected before reaching a handler.
func RequireSession(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, ok := sessionIDFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		user, err := auth.ValidateSession(c.Request.Context(), sessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		c.Set(userContextKey, user)
		c.Set(sessionContextKey, sessionID)

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{UserID: logger.Ptr(user.ID)})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireInternalKey guards the ingest endpoints called by the executor
// functions rather than by browsers.
func RequireInternalKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" || c.GetHeader("X-Internal-Key") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid internal key"})
			return
		}
		c.Next()
	}
}

func sessionIDFrom(c *gin.Context) (int64, bool) {
	raw := c.GetHeader(SessionIDHeader)
	if raw == "" {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil {
			return 0, false
		}
		raw = cookie
	}

	sessionID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, false
	}
	return sessionID, true
}

// CurrentUser returns the authenticated user set by RequireSession.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok
}

// SessionID returns the validated session id for the request. The OAuth
// mailbox is keyed by it.
func SessionID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return 0, false
	}
	sessionID, ok := value.(int64)
	return sessionID, ok
}
