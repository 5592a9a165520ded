package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID string `json:"uid"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func SignToken(secret string, s Session, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: s.UserID,
		Name:   s.Name,
		Role:   string(s.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString([]byte(secret))
}

func ParseToken(secret, token string) (Session, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Session{}, err
	}

	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return Session{}, jwt.ErrTokenInvalidClaims
	}

	role, ok := ParseRole(c.Role)
	if !ok {
		return Session{}, jwt.ErrTokenInvalidClaims
	}

	return Session{
		UserID: c.UserID,
		Name:   c.Name,
		Role:   role,
		Token:  token,
	}, nil
}
