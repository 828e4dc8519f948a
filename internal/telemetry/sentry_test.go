package telemetry_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/cartwright/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSentry_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		cfg  telemetry.SentryConfig
	}{
		{name: "disabled", cfg: telemetry.SentryConfig{Enabled: false, DSN: "https://key@example.com/1"}},
		{name: "enabled without DSN", cfg: telemetry.SentryConfig{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup, err := telemetry.InitSentry(tt.cfg, logger)
			require.NoError(t, err)
			require.NotNil(t, cleanup)
			cleanup()

			assert.False(t, telemetry.IsEnabled())
			assert.NotPanics(t, func() { telemetry.CaptureError(errors.New("ignored")) })
		})
	}
}

func TestSentryMiddleware_PassThroughWhenDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := telemetry.InitSentry(telemetry.SentryConfig{}, logger)
	require.NoError(t, err)

	handler := telemetry.SentryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
