// Package auth verifies the bearer tokens that identify actors. Issuing
// tokens belongs to the session service; Issue exists for development and
// tests.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"garment-storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
}

func New(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

// bearerRole reports whether r may be carried by a token. The system role
// only drives internal transitions.
func bearerRole(r domain.Role) bool {
	return r == domain.RoleCustomer || r == domain.RoleStaff
}

func (t *Tokens) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if !bearerRole(actor.Role) || strings.TrimSpace(actor.ID) == "" {
		return "", fmt.Errorf("issue token: invalid actor %+v", actor)
	}
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies raw and returns the actor it names.
func (t *Tokens) Parse(raw string) (domain.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actorFrom(claims)
}

// Peek reads the actor from raw without verifying the signature. The
// storefront uses it to run local transition checks; the server still
// verifies every request.
func Peek(raw string) (domain.Actor, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actorFrom(claims)
}

func actorFrom(c Claims) (domain.Actor, error) {
	role := domain.Role(c.Role)
	if !bearerRole(role) || c.Subject == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}
	return domain.Actor{ID: c.Subject, Role: role}, nil
}
