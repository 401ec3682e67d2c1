package utils // package utils provides helper functions for token creation

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is a signed JWT together with its expiry.
type Token struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// WorkerClaims are the claims of a worker or operator token.
type WorkerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var tokenParser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithExpirationRequired(),
)

// NewWorkerToken signs an HS256 token for subject with the given role.
// Workers and operators have no accounts; tokens are minted out of band with
// `packctl token` and expire after ttlMin minutes.
func NewWorkerToken(secret, subject, role string, ttlMin int) (Token, error) {
	if secret == "" {
		return Token{}, errors.New("jwt secret is empty")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Token{}, errors.New("subject is required")
	}
	if ttlMin <= 0 {
		ttlMin = 60
	}
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := WorkerClaims{
		Role: strings.ToUpper(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return Token{}, err
	}
	return Token{Token: signed, Exp: exp}, nil
}

// ParseWorkerToken verifies raw against secret and returns its claims.
func ParseWorkerToken(secret, raw string) (*WorkerClaims, error) {
	claims := &WorkerClaims{}
	_, err := tokenParser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
