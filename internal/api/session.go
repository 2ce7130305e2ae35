// session.go - Session cookie handling

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie holds the session id
const SessionCookie = "ocr_session"

// sessionID returns the caller's session id, issuing a new one when the
// cookie is missing or malformed.
func sessionID(c *gin.Context, ttl time.Duration) string {
	if id, err := c.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(id); err == nil {
			setSessionCookie(c, id, ttl)
			return id
		}
	}

	id := uuid.New().String()
	setSessionCookie(c, id, ttl)
	return id
}

func setSessionCookie(c *gin.Context, id string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
}
