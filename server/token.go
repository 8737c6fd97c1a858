package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL is how long issued room tokens stay valid.
const DefaultTokenTTL = 6 * time.Hour

// Claims grant an identity access to one room.
type Claims struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 room tokens. The API key is the issuer and
// the API secret the signing key.
type Tokens struct {
	apiKey string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(apiKey, apiSecret string) *Tokens {
	return &Tokens{
		apiKey: apiKey,
		secret: []byte(apiSecret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
}

// WithTTL returns a copy issuing tokens valid for ttl.
func (t *Tokens) WithTTL(ttl time.Duration) *Tokens {
	cp := *t
	cp.ttl = ttl
	return &cp
}

// Issue signs a token for identity to join room.
func (t *Tokens) Issue(room, identity string) (string, error) {
	if room == "" {
		return "", errors.New("room is required")
	}
	now := t.now()
	claims := Claims{
		Room:     room,
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.apiKey,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and lifetime of a token.
func (t *Tokens) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.apiKey),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Room == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
