package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RSASigner signs RS256 tokens with an in-memory key generated at startup.
// Tokens do not survive a restart; the public half is published as a JWKS.
type RSASigner struct {
	key *rsa.PrivateKey
	kid string
	now func() time.Time
}

func NewRSASigner() (*RSASigner, error) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return newRSASignerFromKey(k)
}

func newRSASignerFromKey(k *rsa.PrivateKey) (*RSASigner, error) {
	pubBytes, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	if err != nil {
		return nil, err
	}
	// kid is the first 8 bytes of the SHA-256 of the DER public key
	h := sha256.Sum256(pubBytes)
	kid := base64.RawURLEncoding.EncodeToString(h[:8])
	return &RSASigner{key: k, kid: kid, now: time.Now}, nil
}

// WithClock overrides the time source, for tests.
func (s *RSASigner) WithClock(now func() time.Time) *RSASigner {
	s.now = now
	return s
}

func (s *RSASigner) Issue(c Claims, ttl time.Duration) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, newSessionClaims(c, s.now(), ttl))
	tok.Header["kid"] = s.kid
	return tok.SignedString(s.key)
}

func (s *RSASigner) Verify(tokenString string) (*Claims, error) {
	return parse(tokenString, jwt.SigningMethodRS256, &s.key.PublicKey, s.now)
}

// KeyID returns the kid stamped on issued tokens.
func (s *RSASigner) KeyID() string { return s.kid }

// JWKS returns a minimal JWKS containing the public key.
func (s *RSASigner) JWKS() (map[string]any, error) {
	pub := s.key.PublicKey
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	// encode exponent using big.Int to get minimal big-endian bytes
	e := base64.RawURLEncoding.EncodeToString(new(big.Int).SetInt64(int64(pub.E)).Bytes())
	jwk := map[string]any{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": s.kid,
		"n":   n,
		"e":   e,
	}
	return map[string]any{"keys": []any{jwk}}, nil
}
