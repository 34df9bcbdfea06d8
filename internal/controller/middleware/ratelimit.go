package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RateLimit throttles requests per remoteci. Every agent gets the same
// budget; limit 0 disables throttling.
func RateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limiters := sync.Map{} // remoteci ID -> *cachedLimiter

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remoteci, ok := RemoteciFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if limit > 0 {
				limiter := getOrCreateLimiter(&limiters, remoteci.ID, limit, burst, 5*time.Minute)
				if !limiter.Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

func getOrCreateLimiter(limiters *sync.Map, id uuid.UUID, limit rate.Limit, burst int, ttl time.Duration) *rate.Limiter {
	if cached, ok := limiters.Load(id); ok {
		c := cached.(*cachedLimiter)
		if time.Now().Before(c.expiresAt) {
			return c.limiter
		}
		// expired, need to create new
	}

	limiter := rate.NewLimiter(limit, burst)
	limiters.Store(id, &cachedLimiter{
		limiter:   limiter,
		expiresAt: time.Now().Add(ttl),
	})
	return limiter
}
