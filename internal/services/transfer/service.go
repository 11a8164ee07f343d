// Package transfer implements the transfer orchestrator and the execution
// state machine: validation, fee calculation, record creation, queueing,
// and the debit/route/finalize flow with compensation on failure.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transferhub/internal/models"
	"transferhub/internal/repositories"
	"transferhub/internal/services/account"
	"transferhub/internal/services/audit"
	"transferhub/internal/services/limits"
	"transferhub/internal/services/notification"
	"transferhub/internal/services/paymentrail"
)

// maxBulkChildren bounds the number of child transfers per bulk request.
const maxBulkChildren = 100

// Service is the transfer orchestrator. All collaborators are injected; the
// service holds no global state.
type Service struct {
	repo     repositories.TransferRepository
	accounts account.Service
	limits   limits.Service
	rail     paymentrail.Service
	notifier notification.Service
	audits   audit.Service
	queue    Enqueuer
}

// NewService creates the transfer orchestrator.
func NewService(
	repo repositories.TransferRepository,
	accounts account.Service,
	limitSvc limits.Service,
	rail paymentrail.Service,
	notifier notification.Service,
	audits audit.Service,
	queue Enqueuer,
) *Service {
	if repo == nil {
		panic("repo is required")
	}
	if accounts == nil {
		panic("account service is required")
	}
	if limitSvc == nil {
		panic("limit service is required")
	}
	if rail == nil {
		panic("payment rail is required")
	}
	if notifier == nil {
		panic("notification service is required")
	}
	if audits == nil {
		panic("audit service is required")
	}
	if queue == nil {
		panic("queue is required")
	}

	return &Service{
		repo:     repo,
		accounts: accounts,
		limits:   limitSvc,
		rail:     rail,
		notifier: notifier,
		audits:   audits,
		queue:    queue,
	}
}

// CreateTransfer validates and prices a single transfer, persists it as
// PENDING in one transaction, and enqueues execution after the commit. An
// enqueue failure leaves the row PENDING for the reconciliation sweep; it
// never fails the creation.
func (s *Service) CreateTransfer(ctx context.Context, input CreateTransferInput) (*models.Transfer, error) {
	return s.createTransfer(ctx, input, models.TransferCategorySingle, classSingle)
}

func (s *Service) createTransfer(ctx context.Context, input CreateTransferInput, category, class string) (*models.Transfer, error) {
	if err := s.validateTransfer(ctx, input, class); err != nil {
		return nil, err
	}

	fee := CalculateFee(input.Amount, input.Type)
	total := input.Amount.Add(fee)

	acct, err := s.accounts.GetAccount(ctx, input.SenderAccountID)
	if err != nil {
		return nil, validationFailure(err)
	}
	if acct.AvailableBalance.LessThan(total) {
		return nil, NewValidationError(CodeInsufficientFunds, validationMessages[CodeInsufficientFunds])
	}

	t := newTransferRecord(input, category, fee, total, nil)

	if err := s.repo.Transaction(ctx, func(r repositories.TransferRepository) error {
		return r.CreateTransfer(ctx, t)
	}); err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	// Enqueue only after the row is committed so a rollback never leaves a
	// job referencing a missing record.
	if err := s.queue.EnqueueTransfer(ctx, t.ID, delayUntil(input.ScheduledFor)); err != nil {
		log.Printf("failed to enqueue transfer %s, left PENDING for reconciliation: %v", t.ID, err)
	}

	log.Printf("transfer created: id=%s ref=%s amount=%s type=%s", t.ID, t.Reference, t.Amount, t.Type)
	return t, nil
}

// CreateBulkTransfer prices every child in request order, checks the
// sender's balance against the aggregate, and persists the bulk record with
// all children in one transaction. Creation is all-or-nothing; execution is
// per child.
func (s *Service) CreateBulkTransfer(ctx context.Context, input CreateBulkTransferInput) (*models.BulkTransfer, error) {
	if len(input.Transfers) == 0 || len(input.Transfers) > maxBulkChildren {
		return nil, NewValidationError("INVALID_BULK_SIZE",
			fmt.Sprintf("bulk requests must contain between 1 and %d transfers", maxBulkChildren))
	}

	bulkID := uuid.NewString()
	totalAmount := decimal.Zero
	totalFee := decimal.Zero
	children := make([]models.Transfer, 0, len(input.Transfers))

	for _, item := range input.Transfers {
		childInput := CreateTransferInput{
			SenderAccountID:        input.SenderAccountID,
			RecipientAccountID:     item.RecipientAccountID,
			RecipientBankCode:      item.RecipientBankCode,
			RecipientName:          item.RecipientName,
			RecipientAccountNumber: item.RecipientAccountNumber,
			Amount:                 item.Amount,
			Currency:               item.Currency,
			Type:                   item.Type,
			Narration:              item.Narration,
		}
		if err := s.validateTransfer(ctx, childInput, classBulk); err != nil {
			return nil, err
		}

		fee := CalculateFee(item.Amount, item.Type)
		totalAmount = totalAmount.Add(item.Amount)
		totalFee = totalFee.Add(fee)

		child := newTransferRecord(childInput, models.TransferCategoryBulk, fee, item.Amount.Add(fee), &bulkID)
		children = append(children, *child)
	}

	// Balance is checked against the aggregate after all children are
	// priced, not per child.
	acct, err := s.accounts.GetAccount(ctx, input.SenderAccountID)
	if err != nil {
		return nil, validationFailure(err)
	}
	if acct.AvailableBalance.LessThan(totalAmount.Add(totalFee)) {
		return nil, NewValidationError(CodeInsufficientFunds, validationMessages[CodeInsufficientFunds])
	}

	bulk := &models.BulkTransfer{
		ID:              bulkID,
		Reference:       fmt.Sprintf("BULK-%d", time.Now().UnixMilli()),
		SenderAccountID: input.SenderAccountID,
		TotalAmount:     totalAmount,
		TotalFee:        totalFee,
		TransferCount:   len(children),
		Status:          models.BulkStatusPending,
		Transfers:       children,
	}

	if err := s.repo.Transaction(ctx, func(r repositories.TransferRepository) error {
		return r.CreateBulkTransfer(ctx, bulk)
	}); err != nil {
		return nil, fmt.Errorf("failed to create bulk transfer: %w", err)
	}

	if err := s.queue.EnqueueBulkTransfer(ctx, bulk.ID); err != nil {
		log.Printf("failed to enqueue bulk transfer %s, left PENDING for reconciliation: %v", bulk.ID, err)
	}

	log.Printf("bulk transfer created: id=%s ref=%s children=%d total=%s",
		bulk.ID, bulk.Reference, bulk.TransferCount, totalAmount)
	return bulk, nil
}

// CreateRecurringTransfer persists an ACTIVE recurring template with its
// first execution time. The periodic sweep materializes due templates into
// single transfers.
func (s *Service) CreateRecurringTransfer(ctx context.Context, input CreateRecurringTransferInput) (*models.RecurringTransfer, error) {
	transferType := models.TransferTypeIntraBank
	if input.RecipientBankCode != "" {
		transferType = models.TransferTypeInterbank
	}

	validateInput := CreateTransferInput{
		SenderAccountID:        input.SenderAccountID,
		RecipientAccountID:     input.RecipientAccountID,
		RecipientBankCode:      input.RecipientBankCode,
		RecipientName:          input.RecipientName,
		RecipientAccountNumber: input.RecipientAccountNumber,
		Amount:                 input.Amount,
		Currency:               input.Currency,
		Type:                   transferType,
	}
	if err := s.validateTransfer(ctx, validateInput, classRecurring); err != nil {
		return nil, err
	}

	rt := &models.RecurringTransfer{
		ID:                     uuid.NewString(),
		Reference:              fmt.Sprintf("RECUR-%d", time.Now().UnixMilli()),
		SenderAccountID:        input.SenderAccountID,
		RecipientAccountID:     input.RecipientAccountID,
		RecipientBankCode:      input.RecipientBankCode,
		RecipientName:          input.RecipientName,
		RecipientAccountNumber: input.RecipientAccountNumber,
		Amount:                 input.Amount,
		Currency:               currencyOrDefault(input.Currency),
		Frequency:              input.Frequency,
		NextExecution:          nextExecutionAfter(time.Now(), input.Frequency),
		EndDate:                input.EndDate,
		Narration:              input.Narration,
		Status:                 models.RecurringStatusActive,
	}

	if err := s.repo.Transaction(ctx, func(r repositories.TransferRepository) error {
		return r.CreateRecurringTransfer(ctx, rt)
	}); err != nil {
		return nil, fmt.Errorf("failed to create recurring transfer: %w", err)
	}

	log.Printf("recurring transfer created: id=%s frequency=%s next=%s", rt.ID, rt.Frequency, rt.NextExecution)
	return rt, nil
}

// GetTransfer returns a transfer by id.
func (s *Service) GetTransfer(ctx context.Context, id string) (*models.Transfer, error) {
	t, err := s.repo.GetTransfer(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTransferNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return t, nil
}

// GetBulkTransfer returns a bulk transfer with its children in processing
// order.
func (s *Service) GetBulkTransfer(ctx context.Context, id string) (*models.BulkTransfer, error) {
	b, err := s.repo.GetBulkTransfer(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrBulkNotFound) {
			return nil, ErrBulkNotFound
		}
		return nil, err
	}
	return b, nil
}

// CancelTransfer moves a PENDING transfer to CANCELLED. Transfers that have
// started processing cannot be cancelled.
func (s *Service) CancelTransfer(ctx context.Context, id string) (*models.Transfer, error) {
	cancelled, err := s.repo.CancelPending(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		if _, err := s.GetTransfer(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotCancellable
	}

	t, err := s.repo.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.audits.RecordTransaction(ctx, audit.Record{
		Reference:       t.Reference,
		Type:            "TRANSFER_CANCELLED",
		Amount:          t.Amount,
		Currency:        t.Currency,
		SenderAccountID: t.SenderAccountID,
		Description:     "transfer cancelled before processing",
	}); err != nil {
		log.Printf("failed to record cancellation audit for %s: %v", t.ID, err)
	}
	return t, nil
}

// ReconcilePendingTransfers re-enqueues single transfers that stayed PENDING
// past the cutoff, typically because the post-commit enqueue failed. The
// PENDING-only claim in the worker makes a duplicate job harmless.
func (s *Service) ReconcilePendingTransfers(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stuck, err := s.repo.PendingSinglesOlderThan(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck transfers: %w", err)
	}

	requeued := 0
	for _, t := range stuck {
		// A future ScheduledFor is not stuck, just waiting.
		if t.ScheduledFor != nil && t.ScheduledFor.After(time.Now()) {
			continue
		}
		if err := s.queue.EnqueueTransfer(ctx, t.ID, 0); err != nil {
			log.Printf("reconciliation: failed to requeue transfer %s: %v", t.ID, err)
			continue
		}
		requeued++
	}
	if requeued > 0 {
		log.Printf("reconciliation: requeued %d pending transfers", requeued)
	}
	return requeued, nil
}

// RecoverStaleProcessing finalizes transfers stuck in PROCESSING past the
// cutoff: a worker died mid-execution, or an infrastructure error outlived
// the queue's retries. The debit record decides the outcome: an
// outstanding debit is reversed and the transfer failed, a settled row
// just lost its completion write and is completed, and a row that never
// debited is failed outright.
func (s *Service) RecoverStaleProcessing(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stuck, err := s.repo.ProcessingOlderThan(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale processing transfers: %w", err)
	}

	recovered := 0
	for i := range stuck {
		t := &stuck[i]
		switch {
		case t.DebitOutstanding:
			if _, err := s.accounts.CreditAccount(ctx, t.SenderAccountID, t.TotalAmount, t.Reference+"-REVERSAL"); err != nil {
				log.Printf("recovery: failed to reverse debit for transfer %s: %v", t.ID, err)
				continue
			}
			if err := s.repo.ClearDebitOutstanding(ctx, t.ID); err != nil {
				log.Printf("recovery: failed to clear debit record for transfer %s: %v", t.ID, err)
			}
			s.recordAudit(ctx, t, "TRANSFER_REVERSED", "debit reversed while recovering stale execution")
			if err := s.repo.FailTransfer(ctx, t.ID, "execution interrupted, debit reversed"); err != nil {
				log.Printf("recovery: failed to mark transfer %s failed: %v", t.ID, err)
				continue
			}
			s.notify(ctx, t, notification.EventTransferFailed, "execution interrupted, debit reversed")
		case t.ProcessedAt != nil:
			if err := s.repo.CompleteTransfer(ctx, t.ID, *t.ProcessedAt); err != nil {
				log.Printf("recovery: failed to complete settled transfer %s: %v", t.ID, err)
				continue
			}
			s.notify(ctx, t, notification.EventTransferSent, "")
		default:
			if err := s.repo.FailTransfer(ctx, t.ID, "execution interrupted before debit"); err != nil {
				log.Printf("recovery: failed to mark transfer %s failed: %v", t.ID, err)
				continue
			}
			s.notify(ctx, t, notification.EventTransferFailed, "execution interrupted before debit")
		}
		recovered++
	}
	if recovered > 0 {
		log.Printf("recovery: finalized %d stale processing transfers", recovered)
	}
	return recovered, nil
}

// RunDueRecurringTransfers materializes due ACTIVE templates into single
// transfers and advances their next execution. Templates past their end
// date are completed. A failed materialization is logged and the template
// still advances, so one bad template cannot wedge the sweep.
func (s *Service) RunDueRecurringTransfers(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.DueRecurringTransfers(ctx, now, 100)
	if err != nil {
		return 0, fmt.Errorf("failed to list due recurring transfers: %w", err)
	}

	executed := 0
	for _, rt := range due {
		if rt.EndDate != nil && rt.EndDate.Before(now) {
			if err := s.repo.CompleteRecurring(ctx, rt.ID); err != nil {
				log.Printf("failed to complete recurring transfer %s: %v", rt.ID, err)
			}
			continue
		}

		transferType := models.TransferTypeIntraBank
		if rt.RecipientBankCode != "" {
			transferType = models.TransferTypeInterbank
		}

		input := CreateTransferInput{
			SenderAccountID:        rt.SenderAccountID,
			RecipientAccountID:     rt.RecipientAccountID,
			RecipientBankCode:      rt.RecipientBankCode,
			RecipientName:          rt.RecipientName,
			RecipientAccountNumber: rt.RecipientAccountNumber,
			Amount:                 rt.Amount,
			Currency:               rt.Currency,
			Type:                   transferType,
			Narration:              rt.Narration,
		}
		if _, err := s.createTransfer(ctx, input, models.TransferCategoryRecurring, classRecurring); err != nil {
			log.Printf("recurring transfer %s materialization failed: %v", rt.ID, err)
		} else {
			executed++
		}

		if err := s.repo.AdvanceRecurring(ctx, rt.ID, nextExecutionAfter(now, rt.Frequency)); err != nil {
			log.Printf("failed to advance recurring transfer %s: %v", rt.ID, err)
		}
	}
	return executed, nil
}

// validateTransfer runs account validation (intra-bank), limit checks, and
// compliance screening, in that order. Any failure is a ValidationError.
func (s *Service) validateTransfer(ctx context.Context, input CreateTransferInput, class string) error {
	if input.Type == models.TransferTypeIntraBank && input.RecipientAccountID != "" {
		if _, err := s.accounts.ValidateAccounts(ctx, input.SenderAccountID, input.RecipientAccountID); err != nil {
			return validationFailure(err)
		}
	}

	if err := s.limits.ValidateTransferLimits(ctx, limits.LimitCheck{
		AccountID:    input.SenderAccountID,
		Amount:       input.Amount,
		Currency:     input.Currency,
		TransferType: input.Type,
		RequestClass: class,
	}); err != nil {
		return validationFailure(err)
	}

	result, err := s.limits.CheckAMLCompliance(ctx, limits.ComplianceCheck{
		AccountID:          input.SenderAccountID,
		RecipientAccountID: input.RecipientAccountID,
		Amount:             input.Amount,
		TransferType:       input.Type,
	})
	if err != nil {
		return fmt.Errorf("compliance check failed: %w", err)
	}
	if !result.Approved {
		return NewValidationError(CodeComplianceCheckFailed, validationMessages[CodeComplianceCheckFailed])
	}

	return nil
}

func newTransferRecord(input CreateTransferInput, category string, fee, total decimal.Decimal, bulkID *string) *models.Transfer {
	return &models.Transfer{
		ID:                     uuid.NewString(),
		Reference:              newReference(),
		SenderAccountID:        input.SenderAccountID,
		SenderAccountNumber:    input.SenderAccountNumber,
		SenderBankCode:         input.SenderBankCode,
		RecipientAccountID:     input.RecipientAccountID,
		RecipientBankCode:      input.RecipientBankCode,
		RecipientName:          input.RecipientName,
		RecipientAccountNumber: input.RecipientAccountNumber,
		Amount:                 input.Amount,
		Currency:               currencyOrDefault(input.Currency),
		Type:                   input.Type,
		Status:                 models.TransferStatusPending,
		Category:               category,
		Fee:                    fee,
		TotalAmount:            total,
		Narration:              input.Narration,
		ScheduledFor:           input.ScheduledFor,
		BulkTransferID:         bulkID,
	}
}

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newReference() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = referenceAlphabet[rand.Intn(len(referenceAlphabet))]
	}
	return fmt.Sprintf("TF-%d-%s", time.Now().UnixMilli(), suffix)
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "NGN"
	}
	return currency
}

func delayUntil(scheduledFor *time.Time) time.Duration {
	if scheduledFor == nil {
		return 0
	}
	if d := time.Until(*scheduledFor); d > 0 {
		return d
	}
	return 0
}

// nextExecutionAfter computes the next run time for a frequency. Unknown
// frequencies fall back to daily.
func nextExecutionAfter(from time.Time, frequency string) time.Time {
	switch frequency {
	case models.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case models.FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case models.FrequencyYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}
