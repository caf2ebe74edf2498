package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the session correlator for clients that do not keep cookies. The
// hosted store's read policy matches on the same header.
const Header = "X-Session-ID"

// ContextKey is where the resolved session id is stored in the gin context.
const ContextKey = "sessionID"

// ResolveID returns the caller's session id from the header or cookie. A missing or
// malformed id is replaced by a fresh one, which is also set as cookie.
func ResolveID(c *gin.Context, cookieName string, ttl time.Duration) string {
	if id, ok := validID(c.GetHeader(Header)); ok {
		return id
	}
	if raw, err := c.Cookie(cookieName); err == nil {
		if id, ok := validID(raw); ok {
			return id
		}
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, id, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
	return id
}

// Middleware resolves the session id for every request and stores it under ContextKey.
func Middleware(cookieName string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ResolveID(c, cookieName, ttl)
		c.Set(ContextKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// FromContext returns the id stored by Middleware.
func FromContext(c *gin.Context) string {
	return c.GetString(ContextKey)
}

func validID(raw string) (string, bool) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
