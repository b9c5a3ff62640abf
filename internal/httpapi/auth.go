package httpapi

import (
	"crypto/subtle"
	"net/http"

	"neurod/internal/apperr"
)

// APIKeyHeader carries the shared secret on protected routes.
const APIKeyHeader = "x-api-key"

const authFailedMsg = "Invalid or missing API Key."

// requireAPIKey rejects requests whose x-api-key does not equal key before
// the body is read. An empty key rejects everything.
func requireAPIKey(service, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !keyMatches(key, r.Header.Get(APIKeyHeader)) {
				authFailuresTotal.WithLabelValues(service).Inc()
				rl := startLog(r, service+" auth")
				writeError(w, rl, apperr.Auth(authFailedMsg))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func keyMatches(want, got string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
