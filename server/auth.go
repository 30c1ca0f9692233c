package server

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// AdminClaims are the claims carried by admin bearer tokens.
type AdminClaims struct {
	gojwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// TokenService issues and validates HS256 admin tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a token service for admin endpoints.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("server: admin token secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// Generate creates a signed admin token for the given subject.
func (s *TokenService) Generate(subject, role string) (string, error) {
	now := time.Now()
	claims := &AdminClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: role,
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("server: sign admin token: %w", err)
	}
	return signed, nil
}

// Parse validates a token string and returns its claims.
func (s *TokenService) Parse(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
	}
	if s.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.issuer))
	}

	token, err := gojwt.ParseWithClaims(tokenString, claims, func(t *gojwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("server: parse admin token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("server: invalid admin token")
	}
	return claims, nil
}
