package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/config"
	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/health"
	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/router"
	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/token"
	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-neighborfit/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-neighborfit/pkg/database"
	"github.com/ovaphlow/pitchfork/service-neighborfit/pkg/utilities"
)

func main() {
	// best-effort: without a .env file the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting neighborfit api")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	if !cfg.JWTSecretFromEnv && cfg.SigningAlg == config.AlgHS256 {
		sugar.Warn("JWT_SECRET not set; using a generated development secret, tokens will not survive a restart")
	}

	sqlDB, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStart()

	users := userrepo.NewUserRepo(sqlxDB, utilities.NewIDGenerator(utilities.NodeIDFromEnv()))
	if err := users.EnsureTable(startCtx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}

	signer, err := newSigner(cfg)
	if err != nil {
		sugar.Fatalf("token signer: %v", err)
	}
	var jwks *token.Handler
	if p, ok := signer.(token.JWKSProvider); ok {
		jwks = token.NewHandler(p, sugar)
	}

	svc := user.NewAuthService(users, user.BcryptHasher{Cost: cfg.BcryptCost}, signer, cfg.TokenTTL, sugar)

	var (
		limiter     *router.RateLimiter
		redisPinger health.Pinger
	)
	if rcfg := database.RedisConfigFromEnv(); rcfg.Addr != "" {
		rdb, err := database.ConnectRedis(startCtx, rcfg)
		if err != nil {
			sugar.Warnw("redis unavailable, auth rate limiting disabled", "err", err)
		} else {
			defer closeRedis(rdb, sugar)
			limiter = router.NewRateLimiter(rdb, cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.TrustedProxies, sugar)
			redisPinger = database.RedisPinger{Client: rdb}
		}
	}

	env := health.Environment{
		DatabaseURLSet: os.Getenv("DATABASE_URL") != "",
		JWTSecretSet:   cfg.JWTSecretFromEnv,
		AppEnv:         cfg.Environment,
	}

	handler := router.RegisterRoutes(sugar, router.Deps{
		Auth:    user.NewHandler(svc, sugar, cfg.IsDevelopment()),
		Health:  health.NewHandler(sqlxDB, redisPinger, env, cfg.IsDevelopment(), sugar),
		JWKS:    jwks,
		Limiter: limiter,
		CORS: router.CORSConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			OriginPatterns: cfg.OriginPatterns,
		},
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infow("listening", "addr", srv.Addr, "env", cfg.Environment, "alg", cfg.SigningAlg)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func newSigner(cfg *config.Config) (token.Signer, error) {
	if cfg.SigningAlg == config.AlgRS256 {
		return token.NewRSASigner()
	}
	return token.NewHMACSigner(cfg.JWTSecret)
}

func closeRedis(rdb *redis.Client, logger *zap.SugaredLogger) {
	if err := rdb.Close(); err != nil {
		logger.Warnf("redis close: %v", err)
	}
}
