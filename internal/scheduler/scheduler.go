// Package scheduler runs the periodic loop that finds due dispatches and
// hands them to the executor. One tick may execute several dispatches;
// claim contention with manual execution is resolved by the claim CAS, so
// a lost race is a skip, not an error.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pvictorino/zapcampaign/internal/metrics"
	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/service/executor"
	"go.uber.org/zap"
)

// DispatchStore is the slice of the store the loop needs.
type DispatchStore interface {
	FindDueDispatches(ctx context.Context, now time.Time) ([]model.Dispatch, error)
	MarkDispatchFailed(ctx context.Context, id int64) error
}

// Executor runs a single dispatch to completion.
type Executor interface {
	Execute(ctx context.Context, dispatchID int64) (executor.Result, error)
}

type Scheduler struct {
	store DispatchStore
	exec  Executor
	log   *zap.Logger

	Interval time.Duration
	Clock    func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func New(store DispatchStore, exec Executor, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		exec:     exec,
		log:      log,
		Interval: interval,
		Clock:    time.Now,
	}
}

// Start launches the loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(ctx, s.stop, s.done)
	s.log.Info("scheduler started", zap.Duration("interval", s.Interval))
}

// Stop halts the loop and waits for an in-flight tick to finish. Calling
// Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	// The loop can also exit through ctx cancellation; flip the flag here
	// so Running() never reports a goroutine that is gone.
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	// Immediate first pass so a restart does not sit out a full interval.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-tick.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass: find everything due at the current clock
// reading and execute each in order. A dispatch that fails to execute is
// marked failed and never blocks the rest of the batch.
func (s *Scheduler) Tick(ctx context.Context) {
	metrics.SchedulerTicksTotal.Inc()

	now := s.Clock()
	due, err := s.store.FindDueDispatches(ctx, now)
	if err != nil {
		s.log.Error("find due dispatches", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	var executed, skipped, failed int
	for _, d := range due {
		_, err := s.exec.Execute(ctx, d.ID)
		switch {
		case err == nil:
			executed++
		case errors.Is(err, repository.ErrAlreadyClaimed), errors.Is(err, executor.ErrNotScheduled):
			// Someone else got there first.
			skipped++
			metrics.DispatchesTotal.WithLabelValues("skipped").Inc()
		default:
			failed++
			s.log.Error("dispatch execution failed",
				zap.Int64("dispatch_id", d.ID),
				zap.Error(err),
			)
			if merr := s.store.MarkDispatchFailed(ctx, d.ID); merr != nil {
				s.log.Error("mark dispatch failed", zap.Int64("dispatch_id", d.ID), zap.Error(merr))
			}
			metrics.DispatchesTotal.WithLabelValues("failed").Inc()
		}
	}

	s.log.Info("scheduler tick",
		zap.Int("due", len(due)),
		zap.Int("executed", executed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
}
