package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware gates privileged operations on a valid admin session cookie.
// A bare PIN check must never reach here; the cookie is the only credential.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := c.Cookie(CookieName)
		if err != nil || tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing admin session"})
			return
		}

		if _, err := ParseToken(secret, tok); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin session"})
			return
		}

		c.Next()
	}
}
