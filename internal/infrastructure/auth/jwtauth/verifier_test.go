package jwtauth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eatwise/labelscan/internal/core/domain"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() Claims {
	return Claims{
		Email: "a@b.c",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_123",
			Issuer:    "https://auth.test",
			Audience:  jwt.ClaimStrings{"labelscan"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	verifier, err := New("secret", "https://auth.test", "labelscan")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	caller, err := verifier.Verify(sign(t, jwt.SigningMethodHS256, []byte("secret"), validClaims()))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if caller.Subject != "user_123" || caller.Email != "a@b.c" || !caller.IsAccount() {
		t.Fatalf("unexpected caller %+v", caller)
	}
}

func TestVerifyRejectsInvalidTokens(t *testing.T) {
	verifier, err := New("secret", "https://auth.test", "labelscan")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.test"
	noSubject := validClaims()
	noSubject.Subject = ""
	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	tests := map[string]string{
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims()),
		"expired":      sign(t, jwt.SigningMethodHS256, []byte("secret"), expired),
		"wrong issuer": sign(t, jwt.SigningMethodHS256, []byte("secret"), wrongIssuer),
		"no subject":   sign(t, jwt.SigningMethodHS256, []byte("secret"), noSubject),
		"no expiry":    sign(t, jwt.SigningMethodHS256, []byte("secret"), noExpiry),
		"wrong alg":    sign(t, jwt.SigningMethodHS512, []byte("secret"), validClaims()),
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(" ", "", ""); err == nil {
		t.Fatalf("expected error")
	}
}
