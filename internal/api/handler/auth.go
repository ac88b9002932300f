package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "batepapo"

var errNoToken = errors.New("token missing")

type participantClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// generateJWT issues the token that lets a participant open the realtime stream.
func generateJWT(name string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := participantClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// validateToken checks signature, issuer and expiry and returns the participant name.
func validateToken(tokenString string, secret []byte) (string, error) {
	claims := &participantClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Name == "" {
		return "", errors.New("token has no participant name")
	}
	return claims.Name, nil
}

// tokenFromRequest reads the token from ?token= (browsers cannot set headers
// on a WebSocket handshake) or from an Authorization: Bearer header.
func tokenFromRequest(c *gin.Context) (string, error) {
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && token != "" {
		return token, nil
	}
	return "", errNoToken
}
