package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gorilla/mux"
	"micecheckin/pkg/claims"
	"micecheckin/pkg/login"
)

var (
	noSessUrls = map[string]string{
		"/api/health":     http.MethodGet,
		"/api/auth/login": http.MethodPost,
	}
)

func CheckJWT(secret string, sessions login.Repository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if route := mux.CurrentRoute(r); route != nil {
				if template, err := route.GetPathTemplate(); err == nil {
					if method, ok := noSessUrls[template]; ok && method == r.Method {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			hashSecretGetter := func(token *jwt.Token) (interface{}, error) {
				method, ok := token.Method.(*jwt.SigningMethodHMAC)
				if !ok || method.Alg() != "HS256" {
					return nil, jwt.NewValidationError("bad sign method", jwt.ValidationErrorSignatureInvalid)
				}
				return []byte(secret), nil
			}

			c := &claims.Claims{}
			token, err := jwt.ParseWithClaims(raw, c, hashSecretGetter)
			if err != nil || !token.Valid || c.UserID == 0 {
				logger.Warn("jwt rejected", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ok, err := sessions.IsValid(r.Context(), c.Id)
			if err != nil {
				logger.Error("login session lookup", "user", c.UserID, "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if !ok {
				logger.Warn("login session not valid", "user", c.UserID)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claims.TokenContextKey, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": msg}})
}
