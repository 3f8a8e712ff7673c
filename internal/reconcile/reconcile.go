// Package reconcile runs the periodic job that recomputes applicationCnt and
// acceptCnt from the application rows they summarize.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

// DefaultSpec runs the repair hourly.
const DefaultSpec = "@every 1h"

// Scheduler wraps robfig/cron and owns the repair loop.
type Scheduler struct {
	cron     *cron.Cron
	repairer recruit.CountRepairer
	spec     string
	log      *slog.Logger

	mu      sync.Mutex // one repair at a time
	running sync.WaitGroup
}

// New returns a Scheduler firing on spec.
func New(repairer recruit.CountRepairer, spec string, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cron.DefaultLogger)),
		repairer: repairer,
		spec:     spec,
		log:      log,
	}
}

// Start registers the job and starts the scheduler. One repair also runs
// immediately so drift left by a crash is fixed without waiting a tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.log.Info("reconciler started", "spec", s.spec)

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.run(ctx)
	}()
	return nil
}

// Stop halts the scheduler and waits for in-flight repairs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.running.Wait()
	s.log.Info("reconciler stopped")
}

// RunOnce performs a single repair and returns how many boards it fixed.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repairer.RepairCounts(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	fixed, err := s.RunOnce(ctx)
	if errors.Is(err, recruit.ErrRepairConflict) {
		s.log.Info("count repair deferred to next run", "err", err)
		return
	}
	if err != nil {
		s.log.Warn("count repair failed", "err", err)
		return
	}
	if fixed > 0 {
		s.log.Info("count repair corrected boards", "fixed", fixed)
	}
}
