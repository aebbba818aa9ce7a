package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const deniedMessage = "authorization has been denied for this request"

func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := GetPrincipal(c); !ok || !p.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": deniedMessage})
			return
		}
		c.Next()
	}
}

// RequireRole rejects authenticated principals lacking a role claim with the
// given value.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok || !p.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": deniedMessage})
			return
		}
		for _, r := range p.Claims.Roles() {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing role"})
	}
}
