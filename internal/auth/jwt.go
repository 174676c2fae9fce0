package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimLogin   = "Login"
	ClaimRefresh = "Refresh"
)

var ErrClaimType = errors.New("unexpected claim type")

type Claims struct {
	ClaimType string `json:"claim_type"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 token for userID. Every token gets its own id so two logins
// within the same second never produce the same string.
func NewToken(secret string, ttl time.Duration, claimType, userID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		ClaimType: claimType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry. An empty claimType accepts any discriminator.
func ParseToken(secret, tokenString, claimType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claimType != "" && claims.ClaimType != claimType {
		return nil, ErrClaimType
	}
	return claims, nil
}
