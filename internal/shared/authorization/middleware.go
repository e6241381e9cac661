package authorization

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin rejects callers whose role is not admin. It reads the role
// set by the auth middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("user_role")
		if r, ok := role.(UserRole); !ok || !r.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"type": "forbidden", "message": "admin access required"},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
