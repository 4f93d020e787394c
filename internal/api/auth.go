package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLifetime bounds the validity of a minted bearer token.
const tokenLifetime = 5 * time.Minute

// Credentials produces the bearer value for each request.
type Credentials interface {
	BearerToken() (string, error)
}

// StaticToken is a pre-shared bearer token.
type StaticToken string

// BearerToken returns the token unchanged.
func (t StaticToken) BearerToken() (string, error) {
	if t == "" {
		return "", errors.New("auth token not configured")
	}
	return string(t), nil
}

// SignedToken mints a short-lived HS256 JWT per request.
type SignedToken struct {
	Secret  []byte
	Subject string
	Now     func() time.Time
}

// BearerToken signs a fresh token.
func (s SignedToken) BearerToken() (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	issued := now()
	claims := &jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(issued.Add(tokenLifetime)),
		IssuedAt:  jwt.NewNumericDate(issued),
		NotBefore: jwt.NewNumericDate(issued),
		Subject:   s.Subject,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
