// Package auth issues and verifies the bearer tokens that guard the hook API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/mediaoffload/internal/common"
)

// Claims are the registered claims; Subject names the calling integration.
type Claims struct {
	jwt.RegisteredClaims
}

// now is swapped in tests.
var now = time.Now

// GenerateToken signs an HS256 token for subject valid for ttl.
func GenerateToken(subject string, secretKey []byte, ttl time.Duration) (string, error) {
	issued := now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	})

	return token.SignedString(secretKey)
}

// ParseSubject verifies tokenString and returns its subject. Expired tokens
// yield common.ErrTokenExpired; every other failure common.ErrInvalidToken.
func ParseSubject(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
