package handler

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := []byte("s3cret")

	token, err := generateJWT("alice", secret, time.Hour)
	require.NoError(t, err)

	name, err := validateToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func TestValidateToken_Rejects(t *testing.T) {
	secret := []byte("s3cret")
	expired, err := generateJWT("alice", secret, -time.Minute)
	require.NoError(t, err)
	otherKey, err := generateJWT("alice", []byte("other"), time.Hour)
	require.NoError(t, err)
	noName, err := jwt.NewWithClaims(jwt.SigningMethodHS256, participantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, participantClaims{
		Name: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"no name":      noName,
		"wrong issuer": wrongIssuer,
		"garbage":      "abc.def.ghi",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := validateToken(token, secret)
			assert.Error(t, err)
		})
	}
}
