package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a session token fails signature
// verification, has expired, or does not identify the live session.
var ErrInvalidToken = errors.New("session: invalid token")

// claims binds a signed token to a session record.
type claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// mintToken signs a token for the given session id, valid until expiresAt.
// The secret is a per-install random key; tokens do not survive a reset.
func mintToken(sessionID string, secret []byte, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	})
	return token.SignedString(secret)
}

// parseToken verifies the signature and expiry and returns the session id.
// Expiry is checked against now, the same clock the manager stamps
// ExpiresAt with.
func parseToken(tokenString string, secret []byte, now func() time.Time) (string, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithTimeFunc(now))
	if err != nil {
		return "", ErrInvalidToken
	}
	if !token.Valid || c.SessionID == "" {
		return "", ErrInvalidToken
	}
	return c.SessionID, nil
}
