package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "rlsync"

// Claims identifies the advisor behind a proxy request.
type Claims struct {
	Advisor string `json:"advisor"`
	jwt.RegisteredClaims
}

func GenerateToken(advisor string, expiration time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	if advisor == "" {
		advisor = "anonymous"
	}

	now := time.Now()
	claims := &Claims{
		Advisor: advisor,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   advisor,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
