// Package worker runs periodic maintenance jobs in the background.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/cartwright/internal/jobs"
	"github.com/dukerupert/cartwright/internal/telemetry"
)

// Config holds sweeper configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// Interval is how often every registered job runs
	Interval time.Duration

	// MaxConcurrency is the maximum number of jobs to run concurrently
	MaxConcurrency int

	// JobTimeout bounds a single job run
	JobTimeout time.Duration
}

// Job is one registered maintenance task.
type Job struct {
	Type string
	Run  func(ctx context.Context) error
}

// Sweeper runs registered jobs on a ticker
type Sweeper struct {
	config  Config
	metrics *telemetry.BusinessMetrics
	logger  *slog.Logger

	mu      sync.Mutex
	jobs    []Job
	running map[string]bool
	wg      sync.WaitGroup
}

// NewSweeper creates a new background sweeper
func NewSweeper(config Config, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *Sweeper {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("sweeper-%s", uuid.New().String()[:8])
	}
	if config.Interval == 0 {
		config.Interval = 5 * time.Minute
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 2
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = time.Minute
	}

	return &Sweeper{
		config:  config,
		metrics: metrics,
		logger:  logger,
		running: make(map[string]bool),
	}
}

// Register adds a job to every future tick.
func (s *Sweeper) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start runs jobs until the context is cancelled, then waits for in-flight
// jobs to finish.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("sweeper starting",
		"worker_id", s.config.WorkerID,
		"interval", s.config.Interval,
		"max_concurrency", s.config.MaxConcurrency,
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Semaphore for concurrency control
	sem := make(chan struct{}, s.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper shutting down", "worker_id", s.config.WorkerID)
			s.wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			s.dispatch(ctx, sem)
		}
	}
}

// dispatch starts every registered job that is not already running, as long
// as the semaphore has room.
func (s *Sweeper) dispatch(ctx context.Context, sem chan struct{}) {
	s.mu.Lock()
	registered := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	for _, job := range registered {
		if !s.claim(job.Type) {
			continue
		}
		select {
		case sem <- struct{}{}:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer func() { <-sem }()
				defer s.release(job.Type)
				s.run(ctx, job)
			}()
		default:
			// At max concurrency, skip until the next tick
			s.release(job.Type)
		}
	}
}

// RunOnce runs every registered job sequentially and returns the first error.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	registered := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var first error
	for _, job := range registered {
		if err := s.run(ctx, job); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Sweeper) run(ctx context.Context, job Job) error {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(jobCtx)
	s.metrics.RecordJob(job.Type, time.Since(start), err)

	if err != nil {
		s.logger.Error("job failed",
			"worker_id", s.config.WorkerID,
			"job_type", job.Type,
			"error", err,
		)
		return err
	}
	s.logger.Debug("job completed",
		"job_type", job.Type,
		"duration", time.Since(start),
	)
	return nil
}

func (s *Sweeper) claim(jobType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[jobType] {
		return false
	}
	s.running[jobType] = true
	return true
}

func (s *Sweeper) release(jobType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, jobType)
}

// PurgeCartsJob deletes carts idle for longer than expiry on every run.
func PurgeCartsJob(carts jobs.CartPurger, expiry time.Duration, metrics *telemetry.BusinessMetrics, logger *slog.Logger) Job {
	return Job{
		Type: jobs.JobTypePurgeExpiredCarts,
		Run: func(ctx context.Context) error {
			result, err := jobs.PurgeExpiredCarts(ctx, carts, time.Now().Add(-expiry))
			if err != nil {
				return err
			}
			metrics.RecordCartsPurged(result.CartsDeleted)
			if result.CartsDeleted > 0 {
				logger.Info("purged expired carts", "count", result.CartsDeleted)
			}
			return nil
		},
	}
}
