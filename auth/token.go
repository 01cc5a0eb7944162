// Package auth issues and verifies the credentials carried by sessions:
// HS256 JWTs on the transport edge, argon2id hashes at rest.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-relay"

// signingKey is replaced at startup from configuration; the default only
// exists so tests can mint tokens without wiring.
var signingKey = []byte("dev-only-signing-key-change-me")

// SetSigningKey installs the secret used for all subsequent tokens. Must
// be called before the server starts accepting connections.
func SetSigningKey(key string) {
	if key != "" {
		signingKey = []byte(key)
	}
}

// CustomClaims is the payload carried by a session token. UserID is the
// only identity the relay trusts; client-supplied actor ids are ignored.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken mints a signed session token for userID.
func GenerateToken(userID string, roles []string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

// ValidateToken checks signature, expiry and issuer, and returns the
// embedded claims.
func ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signingKey, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
