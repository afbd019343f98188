package httpadapter

import (
	"context"
	"net/http"

	"coitrack/internal/domain"
)

// The identity collaborator (out of scope here) authenticates the caller and
// asserts their role; this adapter trusts the X-Actor-Role header it sets
// and threads the typed role explicitly into every service call. No handler
// reads role state from anywhere else.

type ctxKey int

const roleKey ctxKey = iota

// RequireRole rejects requests without a recognizable actor role.
func RequireRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := domain.ParseRole(r.Header.Get("X-Actor-Role"))
		if !ok || role == domain.RoleSystem {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or unknown actor role"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey, role)))
	})
}

func roleFrom(ctx context.Context) domain.Role {
	role, _ := ctx.Value(roleKey).(domain.Role)
	return role
}
