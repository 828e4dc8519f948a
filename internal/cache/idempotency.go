package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const idemKeyPrefix = "idem:order:"

// Idempotency records which order a payment transaction completed.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	return &Idempotency{client: client, ttl: ttl}
}

func idemKey(key string) string {
	return idemKeyPrefix + key
}

// Claim stores key -> orderID unless the key is already held. When it is,
// claimed is false and existing is the order that holds it.
func (i *Idempotency) Claim(ctx context.Context, key string, orderID uuid.UUID) (bool, uuid.UUID, error) {
	ok, err := i.client.SetNX(ctx, idemKey(key), orderID.String(), i.ttl).Result()
	if err != nil {
		return false, uuid.Nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return true, orderID, nil
	}

	val, err := i.client.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return i.Claim(ctx, key, orderID)
	}
	if err != nil {
		return false, uuid.Nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	existing, err := uuid.Parse(val)
	if err != nil {
		return false, uuid.Nil, fmt.Errorf("corrupt idempotency key %s: %w", key, err)
	}
	return false, existing, nil
}

// Release removes a claim so a failed completion can be retried.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	if err := i.client.Del(ctx, idemKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
