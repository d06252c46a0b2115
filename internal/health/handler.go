package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger is satisfied by *sql.DB, *sqlx.DB and the redis ping adapter.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Environment is the configuration summary reported by the health check.
// It only says whether secrets are set, never their values.
type Environment struct {
	DatabaseURLSet bool   `json:"databaseUrlSet"`
	JWTSecretSet   bool   `json:"jwtSecretSet"`
	AppEnv         string `json:"appEnv"`
}

type Handler struct {
	db    Pinger
	redis Pinger
	env   Environment
	// dev includes the raw ping error in the response.
	dev    bool
	logger *zap.SugaredLogger
}

// NewHandler builds the health handler. redis may be nil when not configured.
func NewHandler(db, redis Pinger, env Environment, dev bool, logger *zap.SugaredLogger) *Handler {
	return &Handler{db: db, redis: redis, env: env, dev: dev, logger: logger}
}

type pingStatus struct {
	Ping string `json:"ping"`
}

type response struct {
	Status      string      `json:"status"`
	Database    pingStatus  `json:"database"`
	Redis       *pingStatus `json:"redis,omitempty"`
	Environment Environment `json:"environment"`
	Timestamp   string      `json:"timestamp"`
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	healthy := true
	resp := response{Environment: h.env, Timestamp: time.Now().UTC().Format(time.RFC3339)}

	resp.Database.Ping = h.ping(ctx, "database", h.db)
	if resp.Database.Ping != "success" {
		healthy = false
	}
	if h.redis != nil {
		resp.Redis = &pingStatus{Ping: h.ping(ctx, "redis", h.redis)}
		if resp.Redis.Ping != "success" {
			healthy = false
		}
	}

	status := http.StatusOK
	resp.Status = "OK"
	if !healthy {
		status = http.StatusInternalServerError
		resp.Status = "ERROR"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) ping(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		h.logger.Warnw("health check failed", "component", name, "err", "not connected")
		return "not_connected"
	}
	if err := p.PingContext(ctx); err != nil {
		h.logger.Warnw("health check failed", "component", name, "err", err)
		if h.dev {
			return "ping_failed: " + err.Error()
		}
		return "ping_failed"
	}
	return "success"
}
