package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/orris-inc/docpilot/internal/shared/authorization"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeService TokenType = "service"
)

const defaultAccessExpMinutes = 60

// Claims identify the caller. The subject carries the numeric user id.
type Claims struct {
	Role      authorization.UserRole `json:"role"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	TokenType TokenType              `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID parses the subject. Zero means the token names no user.
func (c *Claims) UserID() uint {
	v, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

type JWTService struct {
	secret           []byte
	issuer           string
	accessExpMinutes int
	now              biztime.Clock
}

func NewJWTService(secret, issuer string, accessExpMinutes int) *JWTService {
	if accessExpMinutes <= 0 {
		accessExpMinutes = defaultAccessExpMinutes
	}
	return &JWTService{
		secret:           []byte(secret),
		issuer:           issuer,
		accessExpMinutes: accessExpMinutes,
		now:              biztime.SystemClock,
	}
}

// Generate signs an access token for userID.
func (s *JWTService) Generate(userID uint, role authorization.UserRole, tenantID string) (string, error) {
	if userID == 0 {
		return "", errors.New("user id is required")
	}
	return s.sign(strconv.FormatUint(uint64(userID), 10), role, tenantID, TokenTypeAccess, time.Duration(s.accessExpMinutes)*time.Minute)
}

// GenerateService signs a long-lived token for a backend caller such as the
// build orchestrator.
func (s *JWTService) GenerateService(name string, ttl time.Duration) (string, error) {
	return s.sign("0", authorization.RoleService, name, TokenTypeService, ttl)
}

func (s *JWTService) sign(subject string, role authorization.UserRole, tenantID string, tokenType TokenType, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		Role:      role,
		TenantID:  tenantID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}

// AccessExpMinutes returns the access token expiration time in minutes
func (s *JWTService) AccessExpMinutes() int {
	return s.accessExpMinutes
}
