package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/jobs"
	"github.com/dukerupert/cartwright/internal/memory"
	"github.com/dukerupert/cartwright/internal/telemetry"
	"github.com/dukerupert/cartwright/internal/worker"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_RunOnce_PurgesCarts(t *testing.T) {
	ctx := context.Background()
	metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
	carts := memory.NewCartStore()
	require.NoError(t, carts.Save(ctx, &domain.Cart{ID: uuid.New(), LastActivity: time.Now().Add(-2 * time.Hour)}))
	require.NoError(t, carts.Save(ctx, &domain.Cart{ID: uuid.New(), LastActivity: time.Now()}))

	sweeper := worker.NewSweeper(worker.Config{}, metrics, discard())
	sweeper.Register(worker.PurgeCartsJob(carts, 30*time.Minute, metrics, discard()))

	require.NoError(t, sweeper.RunOnce(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CartsPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(jobs.JobTypePurgeExpiredCarts)))
}

func TestSweeper_RunOnce_ReportsFailure(t *testing.T) {
	metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
	boom := errors.New("boom")
	var ran atomic.Int32

	sweeper := worker.NewSweeper(worker.Config{}, metrics, discard())
	sweeper.Register(worker.Job{Type: "failing", Run: func(context.Context) error { return boom }})
	sweeper.Register(worker.Job{Type: "ok", Run: func(context.Context) error { ran.Add(1); return nil }})

	err := sweeper.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), ran.Load(), "a failing job does not stop the others")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsFailed.WithLabelValues("failing")))
}

func TestSweeper_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	sweeper := worker.NewSweeper(worker.Config{Interval: 5 * time.Millisecond}, nil, discard())
	sweeper.Register(worker.Job{Type: "tick", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- sweeper.Start(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
