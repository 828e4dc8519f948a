package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

// =============================================================================
// ADMIN
// =============================================================================

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "valid token", token: "s3cret", header: "Bearer s3cret", wantStatus: http.StatusOK},
		{name: "missing header", token: "s3cret", header: "", wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "not bearer", token: "s3cret", header: "Basic s3cret", wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "wrong token", token: "s3cret", header: "Bearer guess", wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "no token configured", token: "", header: "Bearer anything", wantStatus: http.StatusForbidden, wantCode: "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/discounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			RequireAdmin(tt.token)(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeEnvelope(t, rec).Error.Code)
			}
		})
	}
}

// =============================================================================
// REQUEST ID
// =============================================================================

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "lb-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "lb-123", seen)
		assert.Equal(t, "lb-123", rec.Header().Get(RequestIDHeader))
	})
}

// =============================================================================
// RECOVERY
// =============================================================================

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "internal", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "boom")
}

// =============================================================================
// BODY LIMITS
// =============================================================================

func TestMaxBodySize(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	h := MaxBodySize(8)(readAll)

	t.Run("within limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("declared length too large", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku":"TEE-S"}`)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "too_large", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("unknown length cut while reading", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku":"TEE-S"}`))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

// =============================================================================
// RATE LIMIT
// =============================================================================

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2})
	h := rl.Middleware(okHandler)

	serve := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/stock/TEE-S", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("203.0.113.7").Code)
	assert.Equal(t, http.StatusOK, serve("203.0.113.7").Code)

	rec := serve("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit", decodeEnvelope(t, rec).Error.Code)

	assert.Equal(t, http.StatusOK, serve("198.51.100.2").Code, "clients are limited independently")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded for", header: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "10.0.0.1:1234", want: "198.51.100.2"},
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "remote addr without port", remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetrics_RouteLabel(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	mux := http.NewServeMux()
	mux.Handle("GET /api/carts/{id}", m.Middleware(okHandler))

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/carts/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "/api/carts/{id}", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/api/carts/{id}",status="200"} 3`)
}
