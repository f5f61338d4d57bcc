package middleware

import (
	"net/http"
	"strings"

	"micecheckin/pkg/claims"
)

// RequireRole lets the request through only when the authenticated
// user holds one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	msg := roleMessage(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := claims.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if c.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, msg)
		})
	}
}

// roleMessage turns ["ADMIN"] into "Admin access required".
func roleMessage(roles []string) string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		if role == "" {
			continue
		}
		lower := strings.ToLower(role)
		names = append(names, strings.ToUpper(lower[:1])+lower[1:])
	}
	if len(names) == 0 {
		return "Access denied"
	}
	return strings.Join(names, " or ") + " access required"
}
