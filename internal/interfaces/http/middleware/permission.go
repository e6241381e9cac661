package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/utils"
)

type policyEnforcer interface {
	Enforce(subject, tenant, resource, action string) (bool, error)
}

type PermissionMiddleware struct {
	enforcer policyEnforcer
	logger   logger.Interface
}

func NewPermissionMiddleware(enforcer policyEnforcer, logger logger.Interface) *PermissionMiddleware {
	return &PermissionMiddleware{
		enforcer: enforcer,
		logger:   logger,
	}
}

// RequirePermission checks the caller's role within the caller's tenant
// against the casbin policy.
func (m *PermissionMiddleware) RequirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := utils.GetUserRole(c)
		if role == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
			c.Abort()
			return
		}

		tenant := utils.GetTenantID(c)
		allowed, err := m.enforcer.Enforce(role.String(), tenant, resource, action)
		if err != nil {
			m.logger.Errorw("permission check failed", "error", err, "role", role, "tenant", tenant, "resource", resource, "action", action)
			utils.ErrorResponse(c, http.StatusInternalServerError, "permission check failed")
			c.Abort()
			return
		}

		if !allowed {
			userID, _ := utils.GetUserID(c)
			m.logger.Warnw("permission denied", "user_id", userID, "role", role, "tenant", tenant, "resource", resource, "action", action)
			utils.ErrorResponse(c, http.StatusForbidden, "insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}
