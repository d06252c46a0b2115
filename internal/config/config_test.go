package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "APP_ENV", "JWT_SECRET", "TOKEN_TTL", "TOKEN_SIGNING_ALG", "BCRYPT_COST",
		"CORS_ALLOWED_ORIGINS", "CORS_ORIGIN_PATTERNS", "AUTH_RATE_LIMIT", "AUTH_RATE_WINDOW",
		"TRUSTED_PROXIES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.True(t, cfg.JWTSecretFromEnv)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, AlgHS256, cfg.SigningAlg)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, defaultOrigins, cfg.AllowedOrigins)
	assert.Empty(t, cfg.OriginPatterns)
	assert.Equal(t, 20, cfg.AuthRateLimit)
	assert.Equal(t, time.Minute, cfg.AuthRateWindow)
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_SecretRequiredInProduction(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_DevelopmentGeneratesSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "Development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Len(t, cfg.JWTSecret, 64)
	assert.False(t, cfg.JWTSecretFromEnv)
}

func TestLoad_RS256DoesNotNeedSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKEN_SIGNING_ALG", "rs256")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, AlgRS256, cfg.SigningAlg)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("PORT", "8080")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("CORS_ORIGIN_PATTERNS", "https://summer-pep-*.vercel.app")
	t.Setenv("AUTH_RATE_WINDOW", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"https://summer-pep-*.vercel.app"}, cfg.OriginPatterns)
	assert.Equal(t, 30*time.Second, cfg.AuthRateWindow)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad ttl", "TOKEN_TTL", "soon"},
		{"negative ttl", "TOKEN_TTL", "-1h"},
		{"bad alg", "TOKEN_SIGNING_ALG", "none"},
		{"cost too low", "BCRYPT_COST", "2"},
		{"bad window", "AUTH_RATE_WINDOW", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "x")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7,::1, 172.16.5.9/12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
		netip.MustParsePrefix("::1/128"),
		netip.MustParsePrefix("172.16.0.0/12"),
	}, cfg.TrustedProxies)
}

func TestLoad_InvalidTrustedProxy(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1,proxy.internal")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}
