package service

import (
	"testing"
	"time"

	"custody-vault/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "test-issuer")

	tokenStr, expiresAt, err := svc.Generate("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("alice"), claims.Account)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestJWTTokenService_GenerateRejectsInvalidAccount(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")
	_, _, err := svc.Generate("")
	assert.Error(t, err)
	_, _, err = svc.Generate(" padded ")
	assert.Error(t, err)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	// Token with -1 hour expiry = already expired
	svc := NewJWTTokenService(testJWTSecret, -1*time.Hour, "test-issuer")

	tokenStr, _, err := svc.Generate("alice")
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", 24*time.Hour, "issuer")
	svc2 := NewJWTTokenService("secret-2", 24*time.Hour, "issuer")

	tokenStr, _, err := svc1.Generate("alice")
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	svc1 := NewJWTTokenService(testJWTSecret, time.Hour, "issuer-a")
	svc2 := NewJWTTokenService(testJWTSecret, time.Hour, "issuer-b")

	tokenStr, _, err := svc1.Generate("alice")
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "issuer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenStr, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_MissingSubject(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "issuer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenStr, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "issuer")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)
}

func TestJWTTokenService_EmptyToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "issuer")

	_, err := svc.Validate("")
	assert.Error(t, err)
}
