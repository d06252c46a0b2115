package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/user/entity"
)

const maxBodyBytes = 1 << 20

// Handler exposes HTTP endpoints for registration, login and the current user.
type Handler struct {
	svc    *AuthService
	logger *zap.SugaredLogger
	// dev exposes internal error detail in 500 responses.
	dev bool
}

func NewHandler(svc *AuthService, logger *zap.SugaredLogger, dev bool) *Handler {
	return &Handler{svc: svc, logger: logger, dev: dev}
}

// RegisterRequest request body for register endpoint.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string            `json:"token"`
	User  entity.PublicUser `json:"user"`
}

type errorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}
	h.logger.Debugw("registration attempt", "email", req.Email)

	res, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingFields):
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Please provide all required fields"})
		case errors.Is(err, ErrValidation):
			h.logger.Debugw("registration rejected", "err", err)
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Validation error", Details: err.Error()})
		case errors.Is(err, ErrDuplicateUser):
			h.logger.Debugw("registration rejected", "err", err)
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "User already exists with this email"})
		default:
			h.serverError(w, "Server error during registration", err)
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, AuthResponse{Token: res.Token, User: res.User})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Please provide email and password"})
		case errors.Is(err, ErrInvalidCredentials):
			h.logger.Debugw("login failed", "email", req.Email)
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid credentials"})
		default:
			h.serverError(w, "Server error", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, AuthResponse{Token: res.Token, User: res.User})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "No token, authorization denied"})
		return
	}

	u, err := h.svc.CurrentUser(r.Context(), tok)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthenticated):
			h.logger.Debugw("token rejected", "err", err)
			h.writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Token is not valid"})
		case errors.Is(err, ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, errorResponse{Message: "User not found"})
		default:
			h.serverError(w, "Server error", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Errorw(msg, "err", err)
	detail := "Internal server error"
	if h.dev {
		detail = err.Error()
	}
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: msg, Error: detail})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < len("bearer ") || !strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(auth[len("bearer "):])
	return tok, tok != ""
}
