package auth

import "github.com/golang-jwt/jwt/v5"

// SessionFromToken decodes the claims of a token WITHOUT verifying its
// signature. Clients use it to learn their own identity from a token the
// server issued; only the server verifies.
func SessionFromToken(token string) (Session, error) {
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Session{}, err
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
