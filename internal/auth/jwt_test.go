package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oppa-kitchen/storefront/internal/auth"
)

func TestGenerateAndValidateCartToken(t *testing.T) {
	secret := "test-secret"
	cartID := uuid.New()

	token, err := auth.GenerateCartToken(secret, cartID, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateCartToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.CartID != cartID {
		t.Errorf("cart ID: got %v, want %v", claims.CartID, cartID)
	}
	if claims.Subject != cartID.String() {
		t.Errorf("subject: got %v, want %v", claims.Subject, cartID)
	}
}

func TestValidateCartTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateCartToken("secret-a", uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateCartToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateCartTokenExpired(t *testing.T) {
	token, err := auth.GenerateCartToken("secret", uuid.New(), -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateCartToken("secret", token)
	if err == nil {
		t.Fatal("expected error validating expired token")
	}
}

func TestValidateCartTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateCartToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestValidateCartTokenRejectsForeignIssuer(t *testing.T) {
	claims := auth.CartClaims{
		CartID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := auth.ValidateCartToken("secret", token); err == nil {
		t.Fatal("expected error for foreign issuer")
	}
}

func TestValidateCartTokenRejectsMissingCartID(t *testing.T) {
	claims := auth.CartClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "oppa-storefront",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := auth.ValidateCartToken("secret", token); err == nil {
		t.Fatal("expected error for token without cart id")
	}
}
