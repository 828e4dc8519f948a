package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dukerupert/cartwright/internal/telemetry"
)

// Recovery turns a panic into a 500 JSON response, logs the stack and
// reports it to Sentry when enabled.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				GetLogger(r.Context()).Error("panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)
				telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
					"request_id": GetRequestID(r.Context()),
				})
				respondInternalError(w, r, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
