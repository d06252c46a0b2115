// Package token issues and verifies the stateless session tokens handed out
// on registration and login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-neighborfit/pkg/utilities"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the identity carried by a session token.
type Claims struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Signer issues and verifies session tokens. The signing algorithm is an
// implementation detail of each Signer.
type Signer interface {
	Issue(claims Claims, ttl time.Duration) (string, error)
	Verify(token string) (*Claims, error)
}

// JWKSProvider is implemented by signers with a publishable public key.
type JWKSProvider interface {
	JWKS() (map[string]any, error)
}

// sessionClaims is the JWT payload. The id claim duplicates sub for clients
// that read the user id directly.
type sessionClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

func newSessionClaims(c Claims, now time.Time, ttl time.Duration) sessionClaims {
	jti := c.TokenID
	if jti == "" {
		jti = utilities.NewKSUID()
	}
	return sessionClaims{
		UserID: c.Subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func parse(tokenString string, method jwt.SigningMethod, key any, now func() time.Time) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	sc := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, sc, func(t *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if sc.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	out := &Claims{Subject: sc.Subject, TokenID: sc.ID}
	if sc.IssuedAt != nil {
		out.IssuedAt = sc.IssuedAt.Time
	}
	if sc.ExpiresAt != nil {
		out.ExpiresAt = sc.ExpiresAt.Time
	}
	return out, nil
}
