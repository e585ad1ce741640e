package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type SweepEnqueuer interface {
	EnqueueSweep(ctx context.Context) error
}

// Scheduler periodically asks the worker to sweep orphaned images.
type Scheduler struct {
	cron     *cron.Cron
	queue    SweepEnqueuer
	schedule string
	log      zerolog.Logger
}

func NewScheduler(queue SweepEnqueuer, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		queue:    queue,
		schedule: schedule,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil || s.schedule == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.enqueueSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("orphan sweep scheduled")
	return nil
}

// Stop halts the scheduler and waits up to timeout for a running job.
func (s *Scheduler) Stop(timeout time.Duration) {
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(timeout):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.EnqueueSweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("enqueue sweep failed")
	}
}
