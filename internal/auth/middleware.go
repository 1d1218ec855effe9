package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clubadmin/internal/session"
)

// ContextKey is where the middleware stores the resolved session.
const ContextKey = "session"

// SessionGetter resolves session ids.
type SessionGetter interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

// RequireSession enforces bearer access tokens that point at a live session.
func RequireSession(issuer *Issuer, sessions SessionGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, "missing bearer token")
			return
		}
		claims, err := issuer.Parse(tokenStr, KindAccess)
		if err != nil {
			abort(c, "invalid token")
			return
		}
		s, err := sessions.Get(c.Request.Context(), claims.Subject)
		if err != nil {
			abort(c, "session expired")
			return
		}
		c.Set(ContextKey, s)
		c.Next()
	}
}

// FromContext returns the session set by RequireSession.
func FromContext(c *gin.Context) (session.Session, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return session.Session{}, false
	}
	s, ok := v.(session.Session)
	return s, ok
}

// BearerToken extracts the token of an Authorization header.
func BearerToken(header string) (string, bool) {
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(header[len("bearer "):])
	return tok, tok != ""
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
}
