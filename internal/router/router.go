package router

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/health"
	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/token"
	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/user"
)

// Deps are the handlers and policies mounted by RegisterRoutes.
type Deps struct {
	Auth   *user.Handler
	Health *health.Handler
	// JWKS is nil when the signer has no public key to publish.
	JWKS *token.Handler
	// Limiter is nil when Redis is not configured.
	Limiter *RateLimiter
	CORS    CORSConfig
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("NeighborFit API is running"))
	})
	mux.HandleFunc("GET /api/health", d.Health.Check)

	// auth routes; register and login are rate limited when a limiter is set
	limited := func(h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return d.Limiter.Middleware(h)
	}
	mux.Handle("POST /api/auth/register", limited(d.Auth.Register))
	mux.Handle("POST /api/auth/login", limited(d.Auth.Login))
	mux.HandleFunc("GET /api/auth/me", d.Auth.Me)
	if d.JWKS != nil {
		mux.HandleFunc("GET /api/auth/jwks.json", d.JWKS.JWKS)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Route not found"})
	})

	var handler http.Handler = mux
	handler = SecurityHeadersMiddleware()(handler)
	handler = CORSMiddleware(d.CORS, logger)(handler)
	handler = LoggingMiddleware(logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = RecoverMiddleware(logger)(handler)
	return handler
}
