// Package jwt signs and verifies the HMAC-SHA256 tokens used for sessions.
//
// Access and refresh tokens share one payload shape but are produced by two
// Signers with distinct secrets and TTLs, so one can never be accepted as the other.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned when the signature is valid but the token is past its expiry
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed covers bad format, wrong algorithm and invalid signature
	ErrTokenMalformed = errors.New("token malformed")
)

// Payload is the identity carried by both access and refresh tokens
type Payload struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// claims is the wire representation: the payload plus registered claims (exp, iat, jti)
type claims struct {
	Payload
	gojwt.RegisteredClaims
}

// Signer signs and verifies tokens with one secret and TTL
type Signer struct {
	now    func() time.Time
	secret []byte
	ttl    time.Duration
}

// NewSigner creates a Signer. secret must be non-empty
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of tokens issued by this signer
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign issues a token for payload and returns it with its expiry time
func (s *Signer) Sign(p Payload) (string, time.Time, error) {
	return sign(p, s.secret, s.ttl, s.now())
}

// Verify checks signature and expiry and returns the decoded payload
func (s *Signer) Verify(token string) (*Payload, error) {
	return verify(token, s.secret, s.now)
}

// Sign issues a token for payload signed with secret, valid for ttl
func Sign(p Payload, secret string, ttl time.Duration) (string, error) {
	token, _, err := sign(p, []byte(secret), ttl, time.Now())
	return token, err
}

// Verify decodes a token signed with secret.
// Returns ErrTokenExpired or ErrTokenMalformed on failure
func Verify(token, secret string) (*Payload, error) {
	return verify(token, []byte(secret), time.Now)
}

func sign(p Payload, secret []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret cannot be empty")
	}
	if p.Roles == nil {
		p.Roles = []string{}
	}

	expiresAt := now.Add(ttl)

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims{
		Payload: p,
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   p.ID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

func verify(token string, secret []byte, now func() time.Time) (*Payload, error) {
	c := &claims{}

	parsed, err := gojwt.ParseWithClaims(token, c,
		func(t *gojwt.Token) (any, error) {
			return secret, nil
		},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	p := c.Payload
	if p.Roles == nil {
		p.Roles = []string{}
	}

	return &p, nil
}
