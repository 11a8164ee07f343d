package repositories

import (
	"context"
	"errors"
	"time"

	"transferhub/internal/models"

	"gorm.io/gorm"
)

// Repository errors
var (
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrBulkNotFound      = errors.New("bulk transfer not found")
	ErrRecurringNotFound = errors.New("recurring transfer not found")
)

// TransferRepository is the single source of truth for transfer state.
// All status mutations go through the guarded methods below so that no two
// code paths can move the same transfer concurrently.
type TransferRepository interface {
	// Transaction runs fn against a repository bound to one database
	// transaction. A returned error rolls everything back.
	Transaction(ctx context.Context, fn func(r TransferRepository) error) error

	CreateTransfer(ctx context.Context, t *models.Transfer) error
	CreateBulkTransfer(ctx context.Context, b *models.BulkTransfer) error
	CreateRecurringTransfer(ctx context.Context, rt *models.RecurringTransfer) error

	GetTransfer(ctx context.Context, id string) (*models.Transfer, error)
	GetBulkTransfer(ctx context.Context, id string) (*models.BulkTransfer, error)

	// ClaimPending atomically moves PENDING -> PROCESSING. It reports false
	// when the transfer is absent or no longer PENDING, which makes
	// duplicate job deliveries a no-op.
	ClaimPending(ctx context.Context, id string) (bool, error)

	// CancelPending atomically moves PENDING -> CANCELLED.
	CancelPending(ctx context.Context, id string) (bool, error)

	CompleteTransfer(ctx context.Context, id string, processedAt time.Time) error
	FailTransfer(ctx context.Context, id, reason string) error
	SetExternalReference(ctx context.Context, id, externalRef string, processedAt time.Time) error

	// MarkDebitOutstanding records that the sender has been debited for a
	// PROCESSING transfer and the money has not yet been settled or
	// reversed. MarkSettled clears the record once funds are delivered;
	// ClearDebitOutstanding clears it after a compensating credit.
	MarkDebitOutstanding(ctx context.Context, id string) error
	ClearDebitOutstanding(ctx context.Context, id string) error
	MarkSettled(ctx context.Context, id string, processedAt time.Time) error

	// ProcessingOlderThan lists transfers stuck in PROCESSING with no
	// write activity since the cutoff, oldest first. Used by the stale
	// execution recovery sweep.
	ProcessingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Transfer, error)

	MarkBulkProcessing(ctx context.Context, id string) error
	FinalizeBulkTransfer(ctx context.Context, id, status string, successful, failed int) error

	// PendingSinglesOlderThan lists SINGLE transfers stuck in PENDING past
	// the cutoff, oldest first. Used by the reconciliation sweep.
	PendingSinglesOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Transfer, error)

	DueRecurringTransfers(ctx context.Context, now time.Time, limit int) ([]models.RecurringTransfer, error)
	AdvanceRecurring(ctx context.Context, id string, nextExecution time.Time) error
	CompleteRecurring(ctx context.Context, id string) error
}

type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a gorm-backed TransferRepository.
func NewTransferRepository(db *gorm.DB) TransferRepository {
	if db == nil {
		panic("db is required")
	}
	return &transferRepository{db: db}
}

func (r *transferRepository) Transaction(ctx context.Context, fn func(tr TransferRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&transferRepository{db: tx})
	})
}

func (r *transferRepository) CreateTransfer(ctx context.Context, t *models.Transfer) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *transferRepository) CreateBulkTransfer(ctx context.Context, b *models.BulkTransfer) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *transferRepository) CreateRecurringTransfer(ctx context.Context, rt *models.RecurringTransfer) error {
	return r.db.WithContext(ctx).Create(rt).Error
}

func (r *transferRepository) GetTransfer(ctx context.Context, id string) (*models.Transfer, error) {
	var t models.Transfer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *transferRepository) GetBulkTransfer(ctx context.Context, id string) (*models.BulkTransfer, error) {
	var b models.BulkTransfer
	err := r.db.WithContext(ctx).
		Preload("Transfers", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, reference ASC")
		}).
		Where("id = ?", id).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBulkNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *transferRepository) ClaimPending(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND status = ?", id, models.TransferStatusPending).
		Update("status", models.TransferStatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *transferRepository) CancelPending(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND status = ?", id, models.TransferStatusPending).
		Update("status", models.TransferStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *transferRepository) CompleteTransfer(ctx context.Context, id string, processedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND status = ?", id, models.TransferStatusProcessing).
		Updates(map[string]interface{}{
			"status":       models.TransferStatusCompleted,
			"processed_at": processedAt,
		}).Error
}

func (r *transferRepository) FailTransfer(ctx context.Context, id, reason string) error {
	return r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND status = ?", id, models.TransferStatusProcessing).
		Updates(map[string]interface{}{
			"status":         models.TransferStatusFailed,
			"failure_reason": reason,
		}).Error
}

func (r *transferRepository) SetExternalReference(ctx context.Context, id, externalRef string, processedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"external_reference": externalRef,
			"processed_at":       processedAt,
		}).Error
}

func (r *transferRepository) MarkDebitOutstanding(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND status = ?", id, models.TransferStatusProcessing).
		Update("debit_outstanding", true).Error
}

func (r *transferRepository) ClearDebitOutstanding(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ?", id).
		Update("debit_outstanding", false).Error
}

func (r *transferRepository) MarkSettled(ctx context.Context, id string, processedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND status = ?", id, models.TransferStatusProcessing).
		Updates(map[string]interface{}{
			"debit_outstanding": false,
			"processed_at":      processedAt,
		}).Error
}

func (r *transferRepository) ProcessingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.TransferStatusProcessing, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&transfers).Error
	return transfers, err
}

func (r *transferRepository) MarkBulkProcessing(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.BulkTransfer{}).
		Where("id = ? AND status IN ?", id, []string{models.BulkStatusPending, models.BulkStatusProcessing}).
		Update("status", models.BulkStatusProcessing).Error
}

func (r *transferRepository) FinalizeBulkTransfer(ctx context.Context, id, status string, successful, failed int) error {
	return r.db.WithContext(ctx).Model(&models.BulkTransfer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           status,
			"successful_count": successful,
			"failed_count":     failed,
		}).Error
}

func (r *transferRepository) PendingSinglesOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := r.db.WithContext(ctx).
		Where("status = ? AND bulk_transfer_id IS NULL AND created_at < ?", models.TransferStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&transfers).Error
	return transfers, err
}

func (r *transferRepository) DueRecurringTransfers(ctx context.Context, now time.Time, limit int) ([]models.RecurringTransfer, error) {
	var templates []models.RecurringTransfer
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_execution <= ?", models.RecurringStatusActive, now).
		Order("next_execution ASC").
		Limit(limit).
		Find(&templates).Error
	return templates, err
}

func (r *transferRepository) AdvanceRecurring(ctx context.Context, id string, nextExecution time.Time) error {
	return r.db.WithContext(ctx).Model(&models.RecurringTransfer{}).
		Where("id = ?", id).
		Update("next_execution", nextExecution).Error
}

func (r *transferRepository) CompleteRecurring(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.RecurringTransfer{}).
		Where("id = ? AND status = ?", id, models.RecurringStatusActive).
		Update("status", models.RecurringStatusCompleted).Error
}
