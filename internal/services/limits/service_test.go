package limits

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transferhub/internal/models"
)

func highLimits(accountID string) *UserLimits {
	return &UserLimits{
		AccountID:             accountID,
		Tier:                  "platinum",
		PerTransactionLimit:   decimal.NewFromInt(50_000_000),
		RemainingDailyLimit:   decimal.NewFromInt(50_000_000),
		RemainingWeeklyLimit:  decimal.NewFromInt(50_000_000),
		RemainingMonthlyLimit: decimal.NewFromInt(50_000_000),
		Currency:              "NGN",
	}
}

func TestValidateTransferLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects interbank transfers above the regulatory ceiling", func(t *testing.T) {
		svc := NewInMemoryService(highLimits("acc-1"))

		err := svc.ValidateTransferLimits(ctx, LimitCheck{
			AccountID:    "acc-1",
			Amount:       decimal.NewFromInt(10_000_001),
			TransferType: models.TransferTypeInterbank,
		})
		assert.ErrorIs(t, err, ErrRegulatoryLimitExceeded)
	})

	t.Run("does not apply the regulatory ceiling to intra-bank transfers", func(t *testing.T) {
		svc := NewInMemoryService(highLimits("acc-1"))

		err := svc.ValidateTransferLimits(ctx, LimitCheck{
			AccountID:    "acc-1",
			Amount:       decimal.NewFromInt(10_000_001),
			TransferType: models.TransferTypeIntraBank,
		})
		assert.NoError(t, err)
	})

	t.Run("rejects per-transaction breaches before period limits", func(t *testing.T) {
		svc := NewInMemoryService()

		err := svc.ValidateTransferLimits(ctx, LimitCheck{
			AccountID:    "acc-unseeded",
			Amount:       decimal.NewFromInt(2_000_000),
			TransferType: models.TransferTypeIntraBank,
		})
		assert.ErrorIs(t, err, ErrPerTransactionLimitExceeded)
	})

	t.Run("accepts a transfer within all ceilings", func(t *testing.T) {
		svc := NewInMemoryService()

		err := svc.ValidateTransferLimits(ctx, LimitCheck{
			AccountID:    "acc-unseeded",
			Amount:       decimal.NewFromInt(500_000),
			TransferType: models.TransferTypeInterbank,
		})
		assert.NoError(t, err)
	})
}

func TestCheckAMLCompliance(t *testing.T) {
	ctx := context.Background()

	t.Run("flags large transactions but approves them", func(t *testing.T) {
		svc := NewInMemoryService()

		result, err := svc.CheckAMLCompliance(ctx, ComplianceCheck{
			AccountID: "acc-1",
			Amount:    decimal.NewFromInt(6_000_000),
		})
		require.NoError(t, err)
		assert.True(t, result.Approved)
		require.Len(t, result.Flags, 1)
		assert.Equal(t, "LARGE_TRANSACTION", result.Flags[0].Rule)
	})

	t.Run("denies accounts on the deny list", func(t *testing.T) {
		svc := NewInMemoryService()
		svc.DenyCompliance("acc-1")

		result, err := svc.CheckAMLCompliance(ctx, ComplianceCheck{
			AccountID: "acc-1",
			Amount:    decimal.NewFromInt(1_000),
		})
		require.NoError(t, err)
		assert.False(t, result.Approved)
	})
}
