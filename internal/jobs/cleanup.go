// Package jobs holds the maintenance tasks run by the background sweeper.
package jobs

import (
	"context"
	"fmt"
	"time"
)

// Job type constants for cleanup jobs
const (
	JobTypePurgeExpiredCarts = "cleanup:expired_carts"
)

// CartPurger deletes carts idle since before a cutoff.
type CartPurger interface {
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	CartsDeleted int64 `json:"carts_deleted"`
}

// PurgeExpiredCarts removes carts whose last activity is before cutoff. The
// repository deletes with a single conditional statement, so a cart touched
// after the cutoff was computed survives.
func PurgeExpiredCarts(ctx context.Context, repo CartPurger, cutoff time.Time) (*CleanupResult, error) {
	n, err := repo.DeleteInactiveSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to purge expired carts: %w", err)
	}
	return &CleanupResult{CartsDeleted: n}, nil
}

// IsCleanupJob checks if a job type is a cleanup job
func IsCleanupJob(jobType string) bool {
	switch jobType {
	case JobTypePurgeExpiredCarts:
		return true
	}
	return false
}
