package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
)

// defaultOrigins are the local frontends allowed when CORS_ALLOWED_ORIGINS is unset.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8000",
	"http://localhost:8001",
	"http://localhost:8002",
}

type Config struct {
	// Server
	Port        string
	Environment string

	// Tokens
	JWTSecret        string
	JWTSecretFromEnv bool
	TokenTTL         time.Duration
	SigningAlg       string

	// Password hashing work factor
	BcryptCost int

	// CORS
	AllowedOrigins []string
	OriginPatterns []string

	// Auth rate limiting (only active when Redis is configured)
	AuthRateLimit  int
	AuthRateWindow time.Duration

	// Reverse proxies whose X-Forwarded-For header is believed
	TrustedProxies []netip.Prefix
}

// Load reads the application config from the environment. JWT_SECRET is
// required outside development; in development a random per-process secret
// is generated instead.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "5000"),
		Environment:    strings.ToLower(getEnv("APP_ENV", EnvProduction)),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TokenTTL:       7 * 24 * time.Hour,
		SigningAlg:     strings.ToUpper(getEnv("TOKEN_SIGNING_ALG", AlgHS256)),
		BcryptCost:     getEnvInt("BCRYPT_COST", 10),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", defaultOrigins),
		OriginPatterns: getEnvList("CORS_ORIGIN_PATTERNS", nil),
		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindow: time.Minute,
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q", v)
		}
		cfg.TokenTTL = d
	}
	if v := os.Getenv("AUTH_RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid AUTH_RATE_WINDOW %q", v)
		}
		cfg.AuthRateWindow = d
	}

	for _, p := range getEnvList("TRUSTED_PROXIES", nil) {
		prefix, err := parsePrefix(p)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", p, err)
		}
		cfg.TrustedProxies = append(cfg.TrustedProxies, prefix)
	}

	switch cfg.SigningAlg {
	case AlgHS256, AlgRS256:
	default:
		return nil, fmt.Errorf("unsupported TOKEN_SIGNING_ALG %q", cfg.SigningAlg)
	}

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost)
	}

	cfg.JWTSecretFromEnv = cfg.JWTSecret != ""
	if cfg.JWTSecret == "" && cfg.SigningAlg == AlgHS256 {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required")
		}
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate dev secret: %w", err)
		}
		cfg.JWTSecret = secret
	}

	return cfg, nil
}

// IsDevelopment reports whether error details may be shown to clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return "0.0.0.0:" + c.Port
}

// parsePrefix accepts a CIDR or a bare IP, which is treated as a single host.
func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
