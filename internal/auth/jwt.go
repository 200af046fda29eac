// Package auth signs and verifies cart session tokens. Customer
// credentials belong to the order service and are never verified here.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "oppa-storefront"

type CartClaims struct {
	CartID uuid.UUID `json:"cart_id"`
	jwt.RegisteredClaims
}

// GenerateCartToken signs a session token for cartID valid for ttl.
func GenerateCartToken(secret string, cartID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := CartClaims{
		CartID: cartID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   cartID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateCartToken(secret, tokenStr string) (*CartClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CartClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*CartClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.CartID == uuid.Nil {
		return nil, fmt.Errorf("token has no cart id")
	}
	return claims, nil
}
