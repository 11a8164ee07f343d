// Package models defines the persistent entities of the transfer service.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer types
const (
	TransferTypeIntraBank = "INTRA_BANK"
	TransferTypeInterbank = "INTERBANK"
)

// Transfer statuses
const (
	TransferStatusPending    = "PENDING"
	TransferStatusProcessing = "PROCESSING"
	TransferStatusCompleted  = "COMPLETED"
	TransferStatusFailed     = "FAILED"
	TransferStatusCancelled  = "CANCELLED"
)

// Transfer categories
const (
	TransferCategorySingle    = "SINGLE"
	TransferCategoryBulk      = "BULK"
	TransferCategoryRecurring = "RECURRING"
)

// Bulk transfer statuses
const (
	BulkStatusPending            = "PENDING"
	BulkStatusProcessing         = "PROCESSING"
	BulkStatusCompleted          = "COMPLETED"
	BulkStatusPartiallyCompleted = "PARTIALLY_COMPLETED"
	BulkStatusFailed             = "FAILED"
)

// Recurring transfer statuses and frequencies
const (
	RecurringStatusActive    = "ACTIVE"
	RecurringStatusPaused    = "PAUSED"
	RecurringStatusCancelled = "CANCELLED"
	RecurringStatusCompleted = "COMPLETED"

	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
	FrequencyYearly  = "YEARLY"
)

// Transfer is a single funds movement between two accounts.
// TotalAmount is always Amount + Fee and is fixed at creation.
// DebitOutstanding marks a debit that has not yet been settled or
// reversed; it tells recovery what to do with a stale PROCESSING row.
type Transfer struct {
	ID                     string          `gorm:"primaryKey;type:uuid" json:"id"`
	Reference              string          `gorm:"uniqueIndex;not null" json:"reference"`
	SenderAccountID        string          `gorm:"not null;index" json:"senderAccountId"`
	SenderAccountNumber    string          `json:"senderAccountNumber,omitempty"`
	SenderBankCode         string          `json:"senderBankCode,omitempty"`
	RecipientAccountID     string          `json:"recipientAccountId,omitempty"`
	RecipientBankCode      string          `json:"recipientBankCode,omitempty"`
	RecipientName          string          `gorm:"not null" json:"recipientName"`
	RecipientAccountNumber string          `gorm:"not null" json:"recipientAccountNumber"`
	Amount                 decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency               string          `gorm:"not null;default:'NGN'" json:"currency"`
	Type                   string          `gorm:"not null" json:"type"`
	Status                 string          `gorm:"not null;default:'PENDING';index" json:"status"`
	Category               string          `gorm:"not null;default:'SINGLE'" json:"category"`
	Fee                    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"fee"`
	TotalAmount            decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"totalAmount"`
	Narration              string          `json:"narration,omitempty"`
	ScheduledFor           *time.Time      `json:"scheduledFor,omitempty"`
	ProcessedAt            *time.Time      `json:"processedAt,omitempty"`
	DebitOutstanding       bool            `gorm:"not null;default:false" json:"-"`
	FailureReason          string          `json:"failureReason,omitempty"`
	ExternalReference      string          `json:"externalReference,omitempty"`
	BulkTransferID         *string         `gorm:"type:uuid;index" json:"bulkTransferId,omitempty"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}

// IsTerminal reports whether the transfer has reached a final state.
func (t *Transfer) IsTerminal() bool {
	switch t.Status {
	case TransferStatusCompleted, TransferStatusFailed, TransferStatusCancelled:
		return true
	}
	return false
}

// BulkTransfer groups child transfers created from one bulk request.
// Child processing order follows insertion order within batches.
type BulkTransfer struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	Reference       string          `gorm:"uniqueIndex;not null" json:"reference"`
	SenderAccountID string          `gorm:"not null;index" json:"senderAccountId"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"totalAmount"`
	TotalFee        decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"totalFee"`
	TransferCount   int             `gorm:"not null" json:"transferCount"`
	SuccessfulCount int             `json:"successfulCount"`
	FailedCount     int             `json:"failedCount"`
	Status          string          `gorm:"not null;default:'PENDING'" json:"status"`
	Transfers       []Transfer      `gorm:"foreignKey:BulkTransferID" json:"transfers,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// RecurringTransfer is a template from which single transfers are
// materialized on a schedule.
type RecurringTransfer struct {
	ID                     string          `gorm:"primaryKey;type:uuid" json:"id"`
	Reference              string          `gorm:"uniqueIndex;not null" json:"reference"`
	SenderAccountID        string          `gorm:"not null;index" json:"senderAccountId"`
	RecipientAccountID     string          `json:"recipientAccountId,omitempty"`
	RecipientBankCode      string          `json:"recipientBankCode,omitempty"`
	RecipientName          string          `gorm:"not null" json:"recipientName"`
	RecipientAccountNumber string          `gorm:"not null" json:"recipientAccountNumber"`
	Amount                 decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency               string          `gorm:"not null;default:'NGN'" json:"currency"`
	Frequency              string          `gorm:"not null" json:"frequency"`
	NextExecution          time.Time       `gorm:"not null;index" json:"nextExecution"`
	EndDate                *time.Time      `json:"endDate,omitempty"`
	Narration              string          `json:"narration,omitempty"`
	Status                 string          `gorm:"not null;default:'ACTIVE'" json:"status"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}
