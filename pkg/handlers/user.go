package handlers

import (
	"log/slog"
	"net/http"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"micecheckin/pkg/claims"
	"micecheckin/pkg/user"
)

type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserHandler struct {
	Service  user.ServiceInterface
	Secret   string
	TokenTTL time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewUserHandler(service user.ServiceInterface, secret string, tokenTTL time.Duration, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		Service:  service,
		Secret:   secret,
		TokenTTL: tokenTTL,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginForm
	if ok := decodeJSONBody(w, r, &req); !ok {
		return
	}

	u, sessionID, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.Logger.Info("login rejected", "email", req.Email, "error", err)
		writeAppError(w, h.Logger, r, err)
		return
	}

	token, err := h.generateToken(u, sessionID)
	if err != nil {
		h.Logger.Error("token signing", "error", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if writeJSON(w, h.Logger, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    u,
	}) {
		h.Logger.Info("login", "user", u.ID)
	}
}

func (h *UserHandler) generateToken(u *user.User, sessionID string) (string, error) {
	now := h.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims.Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(h.TokenTTL).Unix(),
		},
	})
	return token.SignedString([]byte(h.Secret))
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := getClaims(w, r)
	if !ok {
		return
	}

	u, err := h.Service.Me(r.Context(), c.UserID)
	if err != nil {
		writeAppError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, map[string]any{"user": u})
}

// Pass returns the payload the attendee app renders as a personal QR.
func (h *UserHandler) Pass(w http.ResponseWriter, r *http.Request) {
	c, ok := getClaims(w, r)
	if !ok {
		return
	}

	pass, err := h.Service.Pass(r.Context(), c.UserID)
	if err != nil {
		writeAppError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, pass)
}
