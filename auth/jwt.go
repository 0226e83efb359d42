// Package auth guards the tabpilot control API with HS256 bearer tokens.
//
//	secret := []byte(os.Getenv("TABPILOT_TOKEN_SECRET"))
//	tok, _ := auth.GenerateToken(secret, "ci", 24*time.Hour)
//	r.Use(auth.Require(secret))
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the minimum signing secret length: 32 bytes for HS256.
const MinSecretLen = 32

// ErrSecretTooShort is returned for a secret shorter than MinSecretLen.
var ErrSecretTooShort = fmt.Errorf("auth: secret must be at least %d bytes", MinSecretLen)

// ErrInvalidToken is returned for a token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims identifies the client a token was issued to.
type Claims struct {
	jwt.RegisteredClaims
	Client string `json:"client"`
}

// ValidateSecret checks the secret length.
func ValidateSecret(secret []byte) error {
	if len(secret) < MinSecretLen {
		return ErrSecretTooShort
	}
	return nil
}

// GenerateToken signs a token for client that expires after expiry.
func GenerateToken(secret []byte, client string, expiry time.Duration) (string, error) {
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tabpilot",
			Subject:   client,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Client: client,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateToken parses tokenStr and returns its claims. Only HS256 is accepted.
func ValidateToken(secret []byte, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v (only HS256 allowed)", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer("tabpilot"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
