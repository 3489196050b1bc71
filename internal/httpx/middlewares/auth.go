// Package middlewares holds the HTTP middleware for the API: bearer token
// authentication resolving the caller before any handler or store access.
package middlewares

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/roadmapai/backend/internal/auth"
)

// Verifier resolves a bearer credential to a user ID.
type Verifier interface {
	Verify(token string) (string, error)
}

// RequireAuth rejects requests without a valid bearer token and threads the
// resolved identity through the request context. Rejection happens before
// the handler runs, so unauthenticated requests cause no store access.
func RequireAuth(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			userID, err := v.Verify(token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": msg,
	})
}
