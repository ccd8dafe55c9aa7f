package jwtauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const clockLeeway = 30 * time.Second

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier accepts HS256 bearer tokens minted by the identity provider.
type Verifier struct {
	secret  []byte
	options []jwt.ParserOption
}

func New(secret, issuer, audience string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	}
	if issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}
	return &Verifier{secret: []byte(secret), options: options}, nil
}

func (v *Verifier) Verify(raw string) (domain.Caller, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.options...)
	if err != nil {
		return domain.Caller{}, domain.WrapError(domain.ErrUnauthorized, "verify token", err)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return domain.Caller{}, domain.WrapError(domain.ErrUnauthorized, "verify token", fmt.Errorf("token has no subject"))
	}
	return domain.Caller{Subject: subject, Email: strings.TrimSpace(claims.Email)}, nil
}
