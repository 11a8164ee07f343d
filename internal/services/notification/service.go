// Package notification delivers transfer outcome notifications.
// Delivery is fire-and-forget: failures are logged, never propagated.
package notification

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// Notification event types.
const (
	EventTransferSent   = "transfer_sent"
	EventTransferFailed = "transfer_failed"
	EventBulkCompleted  = "bulk_transfer_completed"
)

// Event describes a single-transfer outcome notification.
type Event struct {
	AccountID         string
	Type              string
	TransferReference string
	Amount            decimal.Decimal
	Currency          string
	RecipientName     string
	FailureReason     string
}

// BulkEvent describes a bulk-transfer completion summary.
type BulkEvent struct {
	AccountID           string
	BulkReference       string
	SuccessfulTransfers int
	FailedTransfers     int
	TotalAmount         decimal.Decimal
	Currency            string
}

// Service is the notification contract consumed by the worker.
type Service interface {
	SendTransferNotification(ctx context.Context, event Event) error
	SendBulkTransferNotification(ctx context.Context, event BulkEvent) error
}

// LogService writes notifications to the process log.
type LogService struct{}

// NewLogService creates a log-backed notification service.
func NewLogService() *LogService { return &LogService{} }

// SendTransferNotification logs a single-transfer notification.
func (s *LogService) SendTransferNotification(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTransferFailed:
		log.Printf("NOTIFICATION: %s account=%s ref=%s amount=%s %s reason=%q",
			event.Type, event.AccountID, event.TransferReference, event.Currency, event.Amount, event.FailureReason)
	default:
		log.Printf("NOTIFICATION: %s account=%s ref=%s amount=%s %s recipient=%q",
			event.Type, event.AccountID, event.TransferReference, event.Currency, event.Amount, event.RecipientName)
	}
	return nil
}

// SendBulkTransferNotification logs a bulk summary notification.
func (s *LogService) SendBulkTransferNotification(ctx context.Context, event BulkEvent) error {
	log.Printf("BULK_NOTIFICATION: ref=%s successful=%d failed=%d total=%s %s",
		event.BulkReference, event.SuccessfulTransfers, event.FailedTransfers, event.Currency, event.TotalAmount)
	return nil
}
