// Package queue connects the transfer service to its asynq-backed execution
// queues. Two queues exist: one for single transfers and one for bulk runs,
// each with its own retry policy and worker concurrency.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Queue names.
const (
	QueueSingle = "single-transfer"
	QueueBulk   = "bulk-transfer"
)

// Task type names.
const (
	TaskProcessTransfer     = "transfer:process"
	TaskProcessBulkTransfer = "transfer:process_bulk"
	TaskRecurringSweep      = "transfer:recurring_sweep"
	TaskReconcilePending    = "transfer:reconcile_pending"
)

// Retry policy per queue.
const (
	singleMaxRetry = 3
	bulkMaxRetry   = 2
)

// transferPayload is the body of a single-transfer task.
type transferPayload struct {
	TransferID string `json:"transferId"`
}

// bulkPayload is the body of a bulk-transfer task.
type bulkPayload struct {
	BulkTransferID string `json:"bulkTransferId"`
}

// Client enqueues transfer work. It implements the orchestrator's Enqueuer
// contract.
type Client struct {
	client *asynq.Client
}

// NewClient creates a queue client over the given redis connection options.
func NewClient(redisOpt asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpt)}
}

// Close releases the underlying redis connections.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueTransfer schedules a single transfer for execution, optionally
// after a delay for scheduled transfers.
func (c *Client) EnqueueTransfer(ctx context.Context, transferID string, delay time.Duration) error {
	payload, err := json.Marshal(transferPayload{TransferID: transferID})
	if err != nil {
		return fmt.Errorf("failed to marshal transfer payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(QueueSingle),
		asynq.MaxRetry(singleMaxRetry),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	if _, err := c.client.EnqueueContext(ctx, asynq.NewTask(TaskProcessTransfer, payload), opts...); err != nil {
		return fmt.Errorf("failed to enqueue transfer %s: %w", transferID, err)
	}
	return nil
}

// EnqueueBulkTransfer schedules a bulk transfer run.
func (c *Client) EnqueueBulkTransfer(ctx context.Context, bulkTransferID string) error {
	payload, err := json.Marshal(bulkPayload{BulkTransferID: bulkTransferID})
	if err != nil {
		return fmt.Errorf("failed to marshal bulk payload: %w", err)
	}

	if _, err := c.client.EnqueueContext(ctx, asynq.NewTask(TaskProcessBulkTransfer, payload),
		asynq.Queue(QueueBulk),
		asynq.MaxRetry(bulkMaxRetry),
	); err != nil {
		return fmt.Errorf("failed to enqueue bulk transfer %s: %w", bulkTransferID, err)
	}
	return nil
}
