// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"cirelay/internal/auth"
	"cirelay/internal/store"
)

// remoteciKey is the context key for the authenticated remoteci.
type remoteciKey struct{}

// Auth authenticates the calling agent by its API secret, presented as a
// bearer token. The secret is hashed before lookup so the database only ever
// sees hashes.
func Auth(s store.RemoteciStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			remoteci, err := s.GetRemoteciByAPISecretHash(r.Context(), auth.HashSecret(parts[1]))
			if err != nil {
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}
			// Re-verify against the stored hash in constant time; the lookup
			// alone must not be what grants access.
			if !auth.SecretMatches(parts[1], remoteci.APISecret) {
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}
			if remoteci.State != store.StateActive {
				http.Error(w, "Remoteci is not active", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), remoteciKey{}, remoteci)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContextWithRemoteci returns a context carrying the remoteci identity.
func NewContextWithRemoteci(ctx context.Context, r *store.Remoteci) context.Context {
	return context.WithValue(ctx, remoteciKey{}, r)
}

// RemoteciFromContext extracts the authenticated remoteci from the context.
func RemoteciFromContext(ctx context.Context) (*store.Remoteci, bool) {
	r, ok := ctx.Value(remoteciKey{}).(*store.Remoteci)
	return r, ok
}
