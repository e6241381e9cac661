package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/docpilot/internal/shared/authorization"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "docpilot", 30)

	token, err := svc.Generate(42, authorization.RoleAdmin, "acme")
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID())
	assert.Equal(t, authorization.RoleAdmin, claims.Role)
	assert.Equal(t, "acme", claims.TenantID)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", "docpilot", 30)
	token, err := svc.Generate(42, authorization.RoleUser, "")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWTService("other", "docpilot", 30).Verify(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewJWTService("secret", "someone-else", 30).Verify(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTService("secret", "docpilot", 30)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Verify(token)
		assert.Error(t, err)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			Role:             authorization.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: "docpilot"},
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Verify(raw)
		assert.Error(t, err)
	})

	t.Run("zero user", func(t *testing.T) {
		_, err := svc.Generate(0, authorization.RoleUser, "")
		assert.Error(t, err)
	})
}

func TestJWTService_ServiceToken(t *testing.T) {
	svc := NewJWTService("secret", "docpilot", 30)
	token, err := svc.GenerateService("orchestrator", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, authorization.RoleService, claims.Role)
	assert.Zero(t, claims.UserID())
}
