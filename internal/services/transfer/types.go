package transfer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Request classes passed to validation.
const (
	classSingle    = "single"
	classBulk      = "bulk"
	classRecurring = "recurring"
)

// CreateTransferInput is a validated single-transfer request.
type CreateTransferInput struct {
	SenderAccountID        string
	SenderAccountNumber    string
	SenderBankCode         string
	RecipientAccountID     string
	RecipientBankCode      string
	RecipientName          string
	RecipientAccountNumber string
	Amount                 decimal.Decimal
	Currency               string
	Type                   string
	Narration              string
	ScheduledFor           *time.Time
}

// BulkTransferItemInput is one child of a bulk request; the sender account
// comes from the enclosing bulk input.
type BulkTransferItemInput struct {
	RecipientAccountID     string
	RecipientBankCode      string
	RecipientName          string
	RecipientAccountNumber string
	Amount                 decimal.Decimal
	Currency               string
	Type                   string
	Narration              string
}

// CreateBulkTransferInput is a validated bulk-transfer request.
type CreateBulkTransferInput struct {
	SenderAccountID string
	Transfers       []BulkTransferItemInput
}

// CreateRecurringTransferInput is a validated recurring-transfer request.
// The transfer type is derived: a recipient bank code means INTERBANK.
type CreateRecurringTransferInput struct {
	SenderAccountID        string
	RecipientAccountID     string
	RecipientBankCode      string
	RecipientName          string
	RecipientAccountNumber string
	Amount                 decimal.Decimal
	Currency               string
	Frequency              string
	EndDate                *time.Time
	Narration              string
}

// Enqueuer hands committed transfers to the execution queue. Implemented by
// the queue package; abstracted here so the orchestrator is testable with a
// fake.
type Enqueuer interface {
	EnqueueTransfer(ctx context.Context, transferID string, delay time.Duration) error
	EnqueueBulkTransfer(ctx context.Context, bulkTransferID string) error
}
