package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulwark/pkg/domain"
	dErrors "bulwark/pkg/domain-errors"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-signing-key", "bulwark")
	principal := domain.Principal{UserID: "u1", Tenant: "acme", Role: "developer", Tier: domain.TierPremium}

	token, err := svc.GenerateAccessToken(principal, time.Hour)
	require.NoError(t, err)

	got, err := svc.PrincipalFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewJWTService("test-signing-key", "bulwark")
	principal := domain.Principal{UserID: "u1", Tenant: "acme"}

	token, err := svc.GenerateAccessToken(principal, -time.Minute)
	require.NoError(t, err)

	_, err = svc.PrincipalFromToken(token)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestWrongKeyRejected(t *testing.T) {
	principal := domain.Principal{UserID: "u1", Tenant: "acme"}
	token, err := NewJWTService("key-a", "bulwark").GenerateAccessToken(principal, time.Hour)
	require.NoError(t, err)

	_, err = NewJWTService("key-b", "bulwark").PrincipalFromToken(token)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestGarbageTokenRejected(t *testing.T) {
	svc := NewJWTService("test-signing-key", "bulwark")

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestTokenMissingIdentityRejected(t *testing.T) {
	svc := NewJWTService("test-signing-key", "bulwark")

	token, err := svc.GenerateAccessToken(domain.Principal{}, time.Hour)
	require.NoError(t, err)

	_, err = svc.PrincipalFromToken(token)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}
