// Package scheduler runs BridgeCore's interval-driven background jobs
// (spec §4.11): hourly/daily usage aggregation and retention sweeps.
// Grounded on pkg/escalation/engine.go's ticker loop, generalized from a
// single fixed interval to a per-job schedule, and from an implicit
// single-process assumption to an explicit Redis advisory lock so only one
// replica runs a given job tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job is one named, interval-driven unit of work. Run must be idempotent:
// a job interrupted mid-run and retried from scratch must converge to the
// same final state (spec §4.11).
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) error
}

// lockTTL bounds how long a job's advisory lock survives a crashed holder.
const lockTTL = 5 * time.Minute

// Scheduler ticks each registered Job on its own interval, serialized
// across replicas via a Redis SET NX PX lock keyed by job name.
type Scheduler struct {
	rdb    *redis.Client
	logger *slog.Logger
	jobs   []Job
	nowFn  func() time.Time
}

// New builds a Scheduler. nowFn defaults to time.Now; tests may override it.
func New(rdb *redis.Client, logger *slog.Logger, jobs []Job) *Scheduler {
	return &Scheduler{rdb: rdb, logger: logger, jobs: jobs, nowFn: time.Now}
}

// Run starts one ticker goroutine per job and blocks until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "jobs", len(s.jobs))

	done := make(chan struct{})
	for _, job := range s.jobs {
		go s.runJob(ctx, job, done)
	}

	<-ctx.Done()
	for range s.jobs {
		<-done
	}
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.attempt(ctx, job)
		}
	}
}

// attempt acquires the job's advisory lock and runs it once if acquired.
// A lock held by another replica means that replica is already running
// this tick; this one skips it rather than blocking.
func (s *Scheduler) attempt(ctx context.Context, job Job) {
	lockKey := fmt.Sprintf("bridgecore:scheduler:lock:%s", job.Name)

	acquired, err := s.rdb.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		s.logger.Error("scheduler lock acquire failed", "job", job.Name, "error", err)
		return
	}
	if !acquired {
		return
	}
	defer s.rdb.Del(ctx, lockKey)

	now := s.nowFn()
	if err := job.Run(ctx, now); err != nil {
		s.logger.Error("scheduler job failed", "job", job.Name, "error", err)
	}
}
