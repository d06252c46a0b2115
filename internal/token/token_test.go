package token

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRSASigner(t *testing.T) *RSASigner {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	s, err := newRSASignerFromKey(k)
	require.NoError(t, err)
	return s
}

func TestHMACSigner_IssueAndVerify(t *testing.T) {
	s, err := NewHMACSigner("test-secret")
	require.NoError(t, err)

	tok, err := s.Issue(Claims{Subject: "user-123"}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	c, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", c.Subject)
	assert.NotEmpty(t, c.TokenID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), c.ExpiresAt, 2*time.Second)
}

func TestHMACSigner_IDClaimMatchesSubject(t *testing.T) {
	s, err := NewHMACSigner("test-secret")
	require.NoError(t, err)

	tok, err := s.Issue(Claims{Subject: "42"}, time.Hour)
	require.NoError(t, err)

	mc := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, mc)
	require.NoError(t, err)
	assert.Equal(t, "42", mc["id"])
	assert.Equal(t, "42", mc["sub"])
}

func TestHMACSigner_EmptySecret(t *testing.T) {
	_, err := NewHMACSigner("")
	assert.Error(t, err)
}

func TestHMACSigner_Expired(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewHMACSigner("test-secret")
	require.NoError(t, err)
	s.WithClock(func() time.Time { return issuedAt })

	tok, err := s.Issue(Claims{Subject: "u1"}, 7*24*time.Hour)
	require.NoError(t, err)

	s.WithClock(func() time.Time { return issuedAt.Add(7*24*time.Hour - time.Minute) })
	_, err = s.Verify(tok)
	require.NoError(t, err)

	s.WithClock(func() time.Time { return issuedAt.Add(7*24*time.Hour + time.Second) })
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestHMACSigner_WrongSecret(t *testing.T) {
	s1, _ := NewHMACSigner("secret-1")
	s2, _ := NewHMACSigner("secret-2")

	tok, err := s1.Issue(Claims{Subject: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = s2.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHMACSigner_Malformed(t *testing.T) {
	s, _ := NewHMACSigner("k")

	for _, tok := range []string{"", "not-a-jwt", "not.a.jwt"} {
		_, err := s.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestHMACSigner_RejectsMissingSubject(t *testing.T) {
	s, _ := NewHMACSigner("k")

	tok, err := s.Issue(Claims{}, time.Hour)
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHMACSigner_RejectsUnsignedAlg(t *testing.T) {
	s, _ := NewHMACSigner("k")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHMACSigner_RejectsMissingExpiry(t *testing.T) {
	s, _ := NewHMACSigner("k")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRSASigner_IssueAndVerify(t *testing.T) {
	s := newTestRSASigner(t)

	tok, err := s.Issue(Claims{Subject: "u-rsa"}, time.Hour)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, s.KeyID(), parsed.Header["kid"])

	c, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-rsa", c.Subject)
}

func TestRSASigner_TokenFailsHMACVerification(t *testing.T) {
	rs := newTestRSASigner(t)
	hs, _ := NewHMACSigner("k")

	tok, err := rs.Issue(Claims{Subject: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = hs.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRSASigner_OtherKeyRejected(t *testing.T) {
	a := newTestRSASigner(t)
	b := newTestRSASigner(t)

	tok, err := a.Issue(Claims{Subject: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHandler_JWKS(t *testing.T) {
	s := newTestRSASigner(t)
	h := NewHandler(s, zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.JWKS(rec, httptest.NewRequest(http.MethodGet, "/api/auth/jwks.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	var body struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Keys, 1)
	assert.Equal(t, "RSA", body.Keys[0]["kty"])
	assert.Equal(t, "RS256", body.Keys[0]["alg"])
	assert.Equal(t, s.KeyID(), body.Keys[0]["kid"])
	assert.Equal(t, "AQAB", body.Keys[0]["e"])
}
