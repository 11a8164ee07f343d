package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"transferhub/internal/models"
	"transferhub/internal/repositories"
	"transferhub/internal/services/audit"
	"transferhub/internal/services/notification"
	"transferhub/internal/services/paymentrail"
)

// bulkBatchSize is the number of bulk children executed concurrently; the
// next batch starts only after every transfer in the current one settles.
const bulkBatchSize = 3

// BulkProgress is reported after each completed batch of a bulk run.
type BulkProgress struct {
	BulkTransferID string `json:"bulkTransferId"`
	Processed      int    `json:"processed"`
	Total          int    `json:"total"`
	Percent        int    `json:"percent"`
}

// ProcessTransfer executes one transfer: claim, debit, route, finalize.
//
// The PENDING->PROCESSING claim is atomic, so a duplicate delivery or a
// concurrent worker finds nothing to do. A landed debit is recorded as
// outstanding until it settles or is reversed: every failure path credits
// the full debited amount back before the transfer is marked FAILED, and
// an execution that dies mid-flight leaves a PROCESSING row that
// RecoverStaleProcessing finishes from the debit record. If the debit
// itself failed there is nothing to refund.
//
// A nil return with a FAILED transfer is deliberate: business failures are
// final and must not be retried by the queue. Only infrastructure errors
// (store unavailable) propagate as errors.
func (s *Service) ProcessTransfer(ctx context.Context, transferID string) error {
	t, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransferNotFound) {
			log.Printf("transfer %s no longer exists, dropping job", transferID)
			return nil
		}
		return fmt.Errorf("failed to load transfer %s: %w", transferID, err)
	}

	claimed, err := s.repo.ClaimPending(ctx, transferID)
	if err != nil {
		return fmt.Errorf("failed to claim transfer %s: %w", transferID, err)
	}
	if !claimed {
		log.Printf("transfer %s is %s, skipping", transferID, t.Status)
		return nil
	}

	// The debit covers amount plus fee so the compensating credit of the
	// same figure restores the balance exactly.
	debit, err := s.accounts.DebitAccount(ctx, t.SenderAccountID, t.TotalAmount, t.Reference)
	if err != nil {
		return s.failTransfer(ctx, t, err.Error(), false)
	}
	log.Printf("debited %s from account %s for transfer %s (new balance %s)",
		t.TotalAmount, t.SenderAccountID, t.ID, debit.NewBalance)

	if err := s.repo.MarkDebitOutstanding(ctx, t.ID); err != nil {
		// The debit landed but could not be recorded, so the recovery
		// sweep would never know to reverse it. Undo the debit now.
		if _, cerr := s.accounts.CreditAccount(ctx, t.SenderAccountID, t.TotalAmount, t.Reference+"-REVERSAL"); cerr != nil {
			return fmt.Errorf("failed to record debit for transfer %s (refund also failed: %v): %w", t.ID, cerr, err)
		}
		return s.failTransfer(ctx, t, "could not record debit", false)
	}

	switch t.Type {
	case models.TransferTypeInterbank:
		err = s.processInterbank(ctx, t)
	default:
		err = s.processIntraBank(ctx, t)
	}
	if err != nil {
		return s.failTransfer(ctx, t, err.Error(), true)
	}

	now := time.Now()
	if err := s.repo.MarkSettled(ctx, t.ID, now); err != nil {
		return fmt.Errorf("transfer %s executed but could not be marked settled: %w", t.ID, err)
	}
	if err := s.repo.CompleteTransfer(ctx, t.ID, now); err != nil {
		// Settled but not completed; the recovery sweep finishes the
		// completion from the settlement record.
		return fmt.Errorf("transfer %s settled but could not be marked completed: %w", t.ID, err)
	}

	s.recordAudit(ctx, t, "TRANSFER_COMPLETED", "transfer executed")
	s.notify(ctx, t, notification.EventTransferSent, "")
	log.Printf("transfer completed: id=%s ref=%s amount=%s", t.ID, t.Reference, t.Amount)
	return nil
}

func (s *Service) processIntraBank(ctx context.Context, t *models.Transfer) error {
	if t.RecipientAccountID == "" {
		return errors.New("intra-bank transfer has no recipient account")
	}
	// Only the principal is credited; the fee stays with the institution.
	if _, err := s.accounts.CreditAccount(ctx, t.RecipientAccountID, t.Amount, t.Reference); err != nil {
		return fmt.Errorf("recipient credit failed: %w", err)
	}
	return nil
}

func (s *Service) processInterbank(ctx context.Context, t *models.Transfer) error {
	result, err := s.rail.ProcessTransfer(ctx, paymentrail.Request{
		SenderAccountNumber:    t.SenderAccountNumber,
		SenderBankCode:         t.SenderBankCode,
		RecipientAccountNumber: t.RecipientAccountNumber,
		RecipientBankCode:      t.RecipientBankCode,
		Amount:                 t.Amount,
		Currency:               t.Currency,
		Reference:              t.Reference,
		Narration:              t.Narration,
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("rail rejected transfer: %s %s", result.ResponseCode, result.ResponseMessage)
	}

	if err := s.repo.SetExternalReference(ctx, t.ID, result.ExternalReference, result.ProcessedAt); err != nil {
		log.Printf("failed to record external reference for transfer %s: %v", t.ID, err)
	}
	return nil
}

// failTransfer finalizes a failed execution. When refund is true the sender
// has been debited and is credited TotalAmount back before the status
// flips; the refund is never attempted when the debit itself failed.
func (s *Service) failTransfer(ctx context.Context, t *models.Transfer, reason string, refund bool) error {
	if refund {
		if _, err := s.accounts.CreditAccount(ctx, t.SenderAccountID, t.TotalAmount, t.Reference+"-REVERSAL"); err != nil {
			// The debit stands and the refund failed. The row stays
			// PROCESSING with its outstanding debit recorded; the
			// permanent-failure hook or the recovery sweep reverses it.
			return fmt.Errorf("transfer %s failed (%s) and refund failed: %w", t.ID, reason, err)
		}
		if err := s.repo.ClearDebitOutstanding(ctx, t.ID); err != nil {
			log.Printf("failed to clear debit record for refunded transfer %s: %v", t.ID, err)
		}
		s.recordAudit(ctx, t, "TRANSFER_REVERSED", "debit reversed after failed execution")
		log.Printf("refunded %s to account %s for failed transfer %s", t.TotalAmount, t.SenderAccountID, t.ID)
	}

	if err := s.repo.FailTransfer(ctx, t.ID, reason); err != nil {
		return fmt.Errorf("failed to mark transfer %s failed: %w", t.ID, err)
	}

	s.notify(ctx, t, notification.EventTransferFailed, reason)
	log.Printf("transfer failed: id=%s ref=%s reason=%q", t.ID, t.Reference, reason)
	return nil
}

// MarkFailedAfterRetries is the permanent-failure hook invoked when the
// queue exhausts retries on an infrastructure error. An outstanding debit
// is reversed before the transfer is failed; if even the reversal fails
// the row is left PROCESSING for RecoverStaleProcessing to finish.
func (s *Service) MarkFailedAfterRetries(ctx context.Context, transferID, reason string) {
	t, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		log.Printf("permanent-failure hook could not load transfer %s: %v", transferID, err)
		return
	}
	if t.Status != models.TransferStatusProcessing {
		return
	}

	if t.DebitOutstanding {
		if _, err := s.accounts.CreditAccount(ctx, t.SenderAccountID, t.TotalAmount, t.Reference+"-REVERSAL"); err != nil {
			log.Printf("permanent-failure hook could not refund transfer %s, leaving it for recovery: %v", transferID, err)
			return
		}
		if err := s.repo.ClearDebitOutstanding(ctx, t.ID); err != nil {
			log.Printf("failed to clear debit record for refunded transfer %s: %v", t.ID, err)
		}
		s.recordAudit(ctx, t, "TRANSFER_REVERSED", "debit reversed after exhausting retries")
	}

	if err := s.repo.FailTransfer(ctx, transferID, reason); err != nil {
		log.Printf("permanent-failure hook could not mark transfer %s failed: %v", transferID, err)
		return
	}
	s.notify(ctx, t, notification.EventTransferFailed, reason)
	log.Printf("transfer %s marked failed after exhausting retries: %s", transferID, reason)
}

// ProcessBulkTransfer executes the children of a bulk transfer in batches
// of bulkBatchSize with a strict sync point between batches, then
// aggregates the child outcomes onto the bulk record: all succeeded ->
// COMPLETED, none succeeded -> FAILED, otherwise PARTIALLY_COMPLETED.
// Child failures never abort the run.
func (s *Service) ProcessBulkTransfer(ctx context.Context, bulkID string, onProgress func(BulkProgress)) error {
	bulk, err := s.repo.GetBulkTransfer(ctx, bulkID)
	if err != nil {
		return fmt.Errorf("failed to load bulk transfer %s: %w", bulkID, err)
	}

	if err := s.repo.MarkBulkProcessing(ctx, bulkID); err != nil {
		return fmt.Errorf("failed to mark bulk transfer %s processing: %w", bulkID, err)
	}

	total := len(bulk.Transfers)
	for start := 0; start < total; start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for _, child := range bulk.Transfers[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if err := s.ProcessTransfer(ctx, id); err != nil {
					log.Printf("bulk %s: child %s errored: %v", bulkID, id, err)
					s.MarkFailedAfterRetries(ctx, id, err.Error())
				}
			}(child.ID)
		}
		wg.Wait()

		if onProgress != nil {
			onProgress(BulkProgress{
				BulkTransferID: bulkID,
				Processed:      end,
				Total:          total,
				Percent:        end * 100 / total,
			})
		}
	}

	// Reload children for their settled statuses before aggregating.
	bulk, err = s.repo.GetBulkTransfer(ctx, bulkID)
	if err != nil {
		return fmt.Errorf("failed to reload bulk transfer %s: %w", bulkID, err)
	}

	successful, failed := 0, 0
	for _, child := range bulk.Transfers {
		switch child.Status {
		case models.TransferStatusCompleted:
			successful++
		default:
			failed++
		}
	}

	status := models.BulkStatusPartiallyCompleted
	switch {
	case failed == 0:
		status = models.BulkStatusCompleted
	case successful == 0:
		status = models.BulkStatusFailed
	}

	if err := s.repo.FinalizeBulkTransfer(ctx, bulkID, status, successful, failed); err != nil {
		return fmt.Errorf("failed to finalize bulk transfer %s: %w", bulkID, err)
	}

	currency := "NGN"
	if len(bulk.Transfers) > 0 {
		currency = bulk.Transfers[0].Currency
	}
	if err := s.notifier.SendBulkTransferNotification(ctx, notification.BulkEvent{
		AccountID:           bulk.SenderAccountID,
		BulkReference:       bulk.Reference,
		SuccessfulTransfers: successful,
		FailedTransfers:     failed,
		TotalAmount:         bulk.TotalAmount,
		Currency:            currency,
	}); err != nil {
		log.Printf("failed to send bulk notification for %s: %v", bulkID, err)
	}

	log.Printf("bulk transfer finished: id=%s status=%s successful=%d failed=%d",
		bulkID, status, successful, failed)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, t *models.Transfer, action, description string) {
	if _, err := s.audits.RecordTransaction(ctx, audit.Record{
		Reference:          t.Reference,
		Type:               action,
		Amount:             t.Amount,
		Currency:           t.Currency,
		SenderAccountID:    t.SenderAccountID,
		RecipientAccountID: t.RecipientAccountID,
		Description:        description,
		Metadata: map[string]interface{}{
			"fee":         t.Fee.String(),
			"totalAmount": t.TotalAmount.String(),
			"category":    t.Category,
		},
	}); err != nil {
		log.Printf("failed to record audit for transfer %s: %v", t.ID, err)
	}
}

func (s *Service) notify(ctx context.Context, t *models.Transfer, event, failureReason string) {
	if err := s.notifier.SendTransferNotification(ctx, notification.Event{
		AccountID:         t.SenderAccountID,
		Type:              event,
		TransferReference: t.Reference,
		Amount:            t.Amount,
		Currency:          t.Currency,
		RecipientName:     t.RecipientName,
		FailureReason:     failureReason,
	}); err != nil {
		log.Printf("failed to send notification for transfer %s: %v", t.ID, err)
	}
}
