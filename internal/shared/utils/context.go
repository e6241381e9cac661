package utils

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/docpilot/internal/shared/authorization"
)

// Keys set on the gin context by the auth middleware.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUserRole = "user_role"
	ContextKeyTenantID = "tenant_id"
)

// GetUserID returns the authenticated user id, or false when the request
// carries no user (anonymous or service tokens).
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

func GetUserRole(c *gin.Context) authorization.UserRole {
	v, ok := c.Get(ContextKeyUserRole)
	if !ok {
		return ""
	}
	role, _ := v.(authorization.UserRole)
	return role
}

func GetTenantID(c *gin.Context) string {
	return c.GetString(ContextKeyTenantID)
}
