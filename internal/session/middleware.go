package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const principalContextKey contextKey = "session.principal"

// FromContext returns the principal attached by Authenticate, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(Principal)
	return principal, ok
}

// BearerToken extracts the raw token from the Authorization header, or ""
// when the header is absent or not a Bearer credential.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// Authenticate validates any presented bearer token and attaches the
// resolved principal to the request context. It never rejects: a missing or
// invalid token simply leaves the request anonymous, and route-level
// authorization decides whether that is acceptable.
func Authenticate(validator *Validator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := validator.Validate(r.Context(), BearerToken(r)); ok {
			r = r.WithContext(context.WithValue(r.Context(), principalContextKey, principal))
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects anonymous requests with 401. The response does not
// distinguish a missing token from a revoked or stale one.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
