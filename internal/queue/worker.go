package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"transferhub/internal/services/transfer"
)

// progressTTL bounds how long bulk progress snapshots live in redis.
const progressTTL = time.Hour

// Reconciliation sweep parameters: only singles stuck in PENDING past the
// cutoff are requeued, a bounded batch at a time.
const (
	reconciliationCutoff    = 10 * time.Minute
	reconciliationBatchSize = 50
)

// Worker runs the two asynq servers. Separate servers give each queue its
// own concurrency ceiling and retry backoff.
type Worker struct {
	singleSrv *asynq.Server
	bulkSrv   *asynq.Server
	svc       *transfer.Service
	rdb       *redis.Client
}

// WorkerConfig sets per-queue worker concurrency.
type WorkerConfig struct {
	SingleConcurrency int
	BulkConcurrency   int
}

// NewWorker creates the queue worker.
func NewWorker(redisOpt asynq.RedisClientOpt, svc *transfer.Service, rdb *redis.Client, cfg WorkerConfig) *Worker {
	if svc == nil {
		panic("transfer service is required")
	}

	singleSrv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.SingleConcurrency,
		Queues:      map[string]int{QueueSingle: 1},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// 1s, 2s, 4s, ...
			return time.Duration(math.Pow(2, float64(n))) * time.Second
		},
		Logger: asynqLogger{},
	})

	bulkSrv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.BulkConcurrency,
		Queues:      map[string]int{QueueBulk: 1},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// 5s, 10s, 20s, ...
			return 5 * time.Duration(math.Pow(2, float64(n))) * time.Second
		},
		Logger: asynqLogger{},
	})

	return &Worker{singleSrv: singleSrv, bulkSrv: bulkSrv, svc: svc, rdb: rdb}
}

// Start launches both servers. It returns once they are running.
func (w *Worker) Start() error {
	singleMux := asynq.NewServeMux()
	singleMux.HandleFunc(TaskProcessTransfer, w.handleTransfer)
	singleMux.HandleFunc(TaskRecurringSweep, w.handleRecurringSweep)
	singleMux.HandleFunc(TaskReconcilePending, w.handleReconcilePending)

	bulkMux := asynq.NewServeMux()
	bulkMux.HandleFunc(TaskProcessBulkTransfer, w.handleBulkTransfer)

	if err := w.singleSrv.Start(singleMux); err != nil {
		return fmt.Errorf("failed to start transfer worker: %w", err)
	}
	if err := w.bulkSrv.Start(bulkMux); err != nil {
		w.singleSrv.Shutdown()
		return fmt.Errorf("failed to start bulk worker: %w", err)
	}
	return nil
}

// Shutdown drains both servers.
func (w *Worker) Shutdown() {
	w.singleSrv.Shutdown()
	w.bulkSrv.Shutdown()
}

func (w *Worker) handleTransfer(ctx context.Context, task *asynq.Task) error {
	var p transferPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("invalid transfer payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.svc.ProcessTransfer(ctx, p.TransferID); err != nil {
		if isFinalAttempt(ctx) {
			// Last attempt: make sure the transfer is not left PROCESSING.
			w.svc.MarkFailedAfterRetries(ctx, p.TransferID, err.Error())
		}
		return err
	}
	return nil
}

func (w *Worker) handleBulkTransfer(ctx context.Context, task *asynq.Task) error {
	var p bulkPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("invalid bulk payload: %v: %w", err, asynq.SkipRetry)
	}

	return w.svc.ProcessBulkTransfer(ctx, p.BulkTransferID, func(progress transfer.BulkProgress) {
		w.publishProgress(ctx, progress)
	})
}

func (w *Worker) handleRecurringSweep(ctx context.Context, task *asynq.Task) error {
	n, err := w.svc.RunDueRecurringTransfers(ctx, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("recurring sweep executed %d transfers", n)
	}
	return nil
}

func (w *Worker) handleReconcilePending(ctx context.Context, task *asynq.Task) error {
	if _, err := w.svc.ReconcilePendingTransfers(ctx, reconciliationCutoff, reconciliationBatchSize); err != nil {
		return err
	}
	_, err := w.svc.RecoverStaleProcessing(ctx, reconciliationCutoff, reconciliationBatchSize)
	return err
}

// publishProgress writes a bulk progress snapshot to redis so status reads
// can report how far a run has gotten. Failures are logged only.
func (w *Worker) publishProgress(ctx context.Context, progress transfer.BulkProgress) {
	if w.rdb == nil {
		return
	}
	data, err := json.Marshal(progress)
	if err != nil {
		return
	}
	key := fmt.Sprintf("bulk:progress:%s", progress.BulkTransferID)
	if err := w.rdb.Set(ctx, key, data, progressTTL).Err(); err != nil {
		log.Printf("failed to publish bulk progress for %s: %v", progress.BulkTransferID, err)
	}
}

// isFinalAttempt reports whether the current delivery is the task's last.
func isFinalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}

// asynqLogger routes asynq's logs through the process logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) {}
func (asynqLogger) Info(args ...interface{})  { log.Println(append([]interface{}{"asynq:"}, args...)...) }
func (asynqLogger) Warn(args ...interface{})  { log.Println(append([]interface{}{"asynq warn:"}, args...)...) }
func (asynqLogger) Error(args ...interface{}) { log.Println(append([]interface{}{"asynq error:"}, args...)...) }
func (asynqLogger) Fatal(args ...interface{}) { log.Fatalln(append([]interface{}{"asynq fatal:"}, args...)...) }
