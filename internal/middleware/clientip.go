package middleware

import (
	"context"
	"net/http"
)

const (
	// ClientIPContextKey is the context key for storing the client IP address
	ClientIPContextKey contextKey = "client_ip"
)

// WithClientIP stores the client IP (see GetClientIP) in the request context.
//
// Note: proxy headers can be spoofed when the service is reachable directly;
// deploy it behind a proxy that sets them.
func WithClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ClientIPContextKey, GetClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIPFromContext retrieves the client IP address from the context.
// Returns an empty string if not found (middleware not applied).
func GetClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPContextKey).(string); ok {
		return ip
	}
	return ""
}
