// Package auth validates bearer tokens and produces the principal the
// pipeline trusts for the rest of the request.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bulwark/pkg/domain"
	dErrors "bulwark/pkg/domain-errors"
)

// Claims are the token claims bulwark issues and accepts.
type Claims struct {
	UserID string `json:"user_id"`
	Tenant string `json:"tenant"`
	Role   string `json:"role"`
	Tier   string `json:"tier"`
	jwt.RegisteredClaims
}

// JWTService signs and validates access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateAccessToken mints a token for the given principal.
func (s *JWTService) GenerateAccessToken(principal domain.Principal, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: principal.UserID,
		Tenant: principal.Tenant,
		Role:   principal.Role,
		Tier:   string(principal.Tier),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a signed token.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// PrincipalFromToken validates the token and builds the request principal.
func (s *JWTService) PrincipalFromToken(tokenString string) (domain.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return domain.Principal{}, err
	}
	principal, err := domain.NewPrincipal(claims.UserID, claims.Tenant, claims.Role, domain.Tier(claims.Tier))
	if err != nil {
		return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token claims are incomplete")
	}
	return principal, nil
}
