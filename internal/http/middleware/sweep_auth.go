package middleware

import (
	"crypto/subtle"
	"net/http"
)

// SweepSecret gates the internal sweep trigger behind a shared secret
// passed in the X-Sweep-Secret header. Comparison is constant-time.
func SweepSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "sweep trigger disabled", http.StatusUnauthorized)
				return
			}
			got := r.Header.Get("X-Sweep-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, "invalid sweep secret", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
