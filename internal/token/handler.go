package token

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler publishes the verification key set of an asymmetric signer.
type Handler struct {
	provider JWKSProvider
	logger   *zap.SugaredLogger
}

func NewHandler(provider JWKSProvider, logger *zap.SugaredLogger) *Handler {
	return &Handler{provider: provider, logger: logger}
}

func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	jwks, err := h.provider.JWKS()
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		h.logger.Errorw("jwks export failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Server error"})
		return
	}
	// public keys only change on restart
	w.Header().Set("Cache-Control", "public, max-age=300")
	_ = json.NewEncoder(w).Encode(jwks)
}
