// Package auth issues and validates HMAC-signed bearer tokens for logged-in users.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const minSecretLen = 32

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Identity is what a valid token resolves to.
type Identity struct {
	Username  string
	SessionID string
	ExpiresAt time.Time
}

// Tokens signs tokens with HMAC-SHA256.
type Tokens struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewTokens(secret string, lifetime time.Duration) (*Tokens, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLen)
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &Tokens{key: []byte(secret), lifetime: lifetime, now: time.Now}, nil
}

// Issue creates a token for username bound to a fresh session id.
func (t *Tokens) Issue(username string) (string, Identity, error) {
	now := t.now()
	id := Identity{
		Username:  username,
		SessionID: uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)).Time,
	}
	c := claims{
		SessionID: id.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.key)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, id, nil
}

func (t *Tokens) Validate(token string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.key, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" || c.SessionID == "" || c.ExpiresAt == nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Username: c.Subject, SessionID: c.SessionID, ExpiresAt: c.ExpiresAt.Time}, nil
}
