package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/jobs"
	"github.com/dukerupert/cartwright/internal/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purgerFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f purgerFunc) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

func TestPurgeExpiredCarts(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := memory.NewCartStore()

	stale := &domain.Cart{ID: uuid.New(), Currency: "AUD", LastActivity: now.Add(-time.Hour)}
	fresh := &domain.Cart{ID: uuid.New(), Currency: "AUD", LastActivity: now}
	require.NoError(t, store.Save(ctx, stale))
	require.NoError(t, store.Save(ctx, fresh))

	result, err := jobs.PurgeExpiredCarts(ctx, store, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.CartsDeleted)

	_, err = store.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestPurgeExpiredCarts_Error(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := jobs.PurgeExpiredCarts(context.Background(), purgerFunc(func(context.Context, time.Time) (int64, error) {
		return 0, boom
	}), time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestIsCleanupJob(t *testing.T) {
	assert.True(t, jobs.IsCleanupJob(jobs.JobTypePurgeExpiredCarts))
	assert.False(t, jobs.IsCleanupJob("email:password_reset"))
}
