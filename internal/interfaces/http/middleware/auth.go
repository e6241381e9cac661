package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/orris-inc/docpilot/internal/infrastructure/auth"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/utils"
)

type tokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	verifier tokenVerifier
	logger   logger.Interface
}

func NewAuthMiddleware(verifier tokenVerifier, logger logger.Interface) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireAuth accepts a bearer token issued by the identity service and
// puts user id, role and tenant on the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.reject(c, apperrors.NewTokenMissingError(), nil)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			m.reject(c, apperrors.NewTokenMalformedError(), nil)
			return
		}

		claims, err := m.verifier.Verify(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				m.reject(c, apperrors.NewTokenExpiredError(), err)
			} else {
				m.reject(c, apperrors.NewTokenInvalidError(), err)
			}
			return
		}

		if claims.TokenType != auth.TokenTypeAccess && claims.TokenType != auth.TokenTypeService {
			m.reject(c, apperrors.NewTokenTypeInvalidError(string(claims.TokenType)), nil)
			return
		}

		if uid := claims.UserID(); uid != 0 {
			c.Set(utils.ContextKeyUserID, uid)
		}
		c.Set(utils.ContextKeyUserRole, claims.Role)
		c.Set(utils.ContextKeyTenantID, claims.TenantID)

		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, authErr *apperrors.AuthError, cause error) {
	if apperrors.ShouldLogAuthError(authErr) {
		m.logger.Warnw("rejected bearer token",
			"type", authErr.Type,
			"security_event", apperrors.IsSecurityEvent(authErr),
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
			"error", cause,
		)
	}
	utils.ErrorResponseWithError(c, authErr)
	c.Abort()
}
