package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HMACSigner signs HS256 tokens with a shared server secret.
type HMACSigner struct {
	secret []byte
	now    func() time.Time
}

func NewHMACSigner(secret string) (*HMACSigner, error) {
	if secret == "" {
		return nil, errors.New("empty signing secret")
	}
	return &HMACSigner{secret: []byte(secret), now: time.Now}, nil
}

// WithClock overrides the time source, for tests.
func (s *HMACSigner) WithClock(now func() time.Time) *HMACSigner {
	s.now = now
	return s
}

func (s *HMACSigner) Issue(c Claims, ttl time.Duration) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, newSessionClaims(c, s.now(), ttl))
	return tok.SignedString(s.secret)
}

func (s *HMACSigner) Verify(tokenString string) (*Claims, error) {
	return parse(tokenString, jwt.SigningMethodHS256, s.secret, s.now)
}
