package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
)

// Sweep cadence. The recurring sweep materializes due templates; the
// reconciliation sweep requeues singles stuck in PENDING and finalizes
// transfers stranded in PROCESSING.
const (
	recurringSweepSpec      = "@every 1m"
	reconciliationSweepSpec = "@every 5m"
)

// Scheduler registers the periodic maintenance tasks. The tasks are
// enqueued on the single-transfer queue and handled by the worker.
type Scheduler struct {
	scheduler *asynq.Scheduler
}

// NewScheduler creates the periodic task scheduler.
func NewScheduler(redisOpt asynq.RedisClientOpt) *Scheduler {
	return &Scheduler{
		scheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: asynqLogger{}}),
	}
}

// Start registers the sweeps and launches the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Register(recurringSweepSpec,
		asynq.NewTask(TaskRecurringSweep, nil),
		asynq.Queue(QueueSingle), asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("failed to register recurring sweep: %w", err)
	}
	if _, err := s.scheduler.Register(reconciliationSweepSpec,
		asynq.NewTask(TaskReconcilePending, nil),
		asynq.Queue(QueueSingle), asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("failed to register reconciliation sweep: %w", err)
	}
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Shutdown stops the scheduler.
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
