// Package auth verifies and issues the bearer tokens carried on the
// websocket upgrade. The presence core only ever sees the resulting
// identity.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sketchdesk/presence/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the data carried inside a signed token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JWT authenticates HS256-signed tokens against a shared secret.
type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWT{secret: []byte(secret), ttl: ttl}
}

// Verify parses and validates the signature and expiration of a token
// and returns the identity it was issued for.
func (j *JWT) Verify(token string) (domain.UserID, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return j.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	user := domain.UserID(claims.UserID)
	if err := user.Validate(); err != nil {
		return "", err
	}
	return user, nil
}

// Issue creates a signed token for an identity. Used by the signin
// endpoint and by tests; the presence core never calls it.
func (j *JWT) Issue(user domain.UserID) (string, error) {
	if err := user.Validate(); err != nil {
		return "", err
	}
	claims := &Claims{
		UserID: string(user),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "presence",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}
