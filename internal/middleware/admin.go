package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dukerupert/cartwright/internal/domain"
)

// RequireAdmin rejects requests that do not carry "Authorization: Bearer <token>".
// An empty token rejects every request.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || given == "" {
				respondWithError(w, r, domain.Unauthorized("", "Admin token required"))
				return
			}

			if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				respondWithError(w, r, domain.Forbidden("", "Invalid admin token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
