package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware returns a middleware that validates X-Scrub-Key or
// Authorization: Bearer <key> against the accepted key set.
func AuthMiddleware(apiKeys map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Scrub-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if key == "" || !matchKey(apiKeys, key) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matchKey(apiKeys map[string]bool, key string) bool {
	matched := false
	for k := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			matched = true
		}
	}
	return matched
}

// ParseAPIKeys splits a comma-separated key list (e.g. SCRUB_API_KEYS)
// into the accepted key set.
func ParseAPIKeys(env string) map[string]bool {
	keys := make(map[string]bool)
	for _, part := range strings.Split(env, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			keys[part] = true
		}
	}
	return keys
}
