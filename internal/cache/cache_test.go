package cache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukerupert/cartwright/internal/cache"
	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests require a redis server at TEST_REDIS_URL. They flush the
// selected database, so point it at a scratch db (e.g. redis://localhost:6379/15).
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	client, err := cache.Connect(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

type sourceFunc func(ctx context.Context, currency string) ([]domain.BundleRule, error)

func (f sourceFunc) ActiveBundles(ctx context.Context, currency string) ([]domain.BundleRule, error) {
	return f(ctx, currency)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRuleCache_ActiveBundles(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	rule := domain.BundleRule{
		ID:               uuid.New(),
		Active:           true,
		RequiredQuantity: 2,
		Prices:           map[string]domain.Money{"AUD": 2000},
		Titles:           map[string]string{"AUD": "2 for $20"},
	}

	calls := 0
	source := sourceFunc(func(ctx context.Context, currency string) ([]domain.BundleRule, error) {
		calls++
		return []domain.BundleRule{rule}, nil
	})
	c := cache.NewRuleCache(client, source, time.Minute, discard())

	first, err := c.ActiveBundles(ctx, "AUD")
	require.NoError(t, err)
	second, err := c.ActiveBundles(ctx, "AUD")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second read should hit the cache")
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, domain.Money(2000), second[0].Prices["AUD"])

	_, err = c.ActiveBundles(ctx, "NZD")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "snapshots are per currency")

	require.NoError(t, c.Invalidate(ctx))
	_, err = c.ActiveBundles(ctx, "AUD")
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "invalidate drops every snapshot")
}

func TestRuleCache_SourceError(t *testing.T) {
	client := testClient(t)

	boom := errors.New("db down")
	c := cache.NewRuleCache(client, sourceFunc(func(ctx context.Context, currency string) ([]domain.BundleRule, error) {
		return nil, boom
	}), time.Minute, discard())

	_, err := c.ActiveBundles(context.Background(), "AUD")
	assert.ErrorIs(t, err, boom)
}

func TestIdempotency_Claim(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	idem := cache.NewIdempotency(client, time.Hour)

	first := uuid.New()
	claimed, holder, err := idem.Claim(ctx, "txn_1", first)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, first, holder)

	claimed, holder, err = idem.Claim(ctx, "txn_1", uuid.New())
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, first, holder, "the original order keeps the transaction")

	require.NoError(t, idem.Release(ctx, "txn_1"))
	claimed, _, err = idem.Claim(ctx, "txn_1", uuid.New())
	require.NoError(t, err)
	assert.True(t, claimed)
}
