package transfer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"transferhub/internal/models"
)

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		name         string
		amount       decimal.Decimal
		transferType string
		want         decimal.Decimal
	}{
		{
			name:         "intra-bank below percentage threshold",
			amount:       decimal.NewFromInt(40_000),
			transferType: models.TransferTypeIntraBank,
			want:         decimal.NewFromInt(10),
		},
		{
			name:         "interbank below percentage threshold",
			amount:       decimal.NewFromInt(40_000),
			transferType: models.TransferTypeInterbank,
			want:         decimal.NewFromInt(35),
		},
		{
			name:         "interbank above threshold adds percentage",
			amount:       decimal.NewFromInt(60_000),
			transferType: models.TransferTypeInterbank,
			want:         decimal.NewFromInt(95), // 10 + 25 + 60
		},
		{
			name:         "intra-bank above threshold adds percentage",
			amount:       decimal.NewFromInt(100_000),
			transferType: models.TransferTypeIntraBank,
			want:         decimal.NewFromInt(110), // 10 + 100
		},
		{
			name:         "exactly at threshold has no percentage",
			amount:       decimal.NewFromInt(50_000),
			transferType: models.TransferTypeIntraBank,
			want:         decimal.NewFromInt(10),
		},
		{
			name:         "fee is capped",
			amount:       decimal.NewFromInt(10_000_000),
			transferType: models.TransferTypeInterbank,
			want:         decimal.NewFromInt(5_000),
		},
		{
			name:         "fractional amounts keep exact decimal math",
			amount:       decimal.RequireFromString("60000.50"),
			transferType: models.TransferTypeIntraBank,
			want:         decimal.RequireFromString("70.0005"), // 10 + 60.0005
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateFee(tt.amount, tt.transferType)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestCalculateFeeIsDeterministic(t *testing.T) {
	amount := decimal.NewFromInt(75_000)
	first := CalculateFee(amount, models.TransferTypeInterbank)
	for i := 0; i < 10; i++ {
		assert.True(t, first.Equal(CalculateFee(amount, models.TransferTypeInterbank)))
	}
}

func TestCalculateFeeMonotonicUpToCap(t *testing.T) {
	prev := CalculateFee(decimal.NewFromInt(1), models.TransferTypeInterbank)
	for _, amount := range []int64{100, 50_000, 50_001, 100_000, 1_000_000, 4_965_000} {
		fee := CalculateFee(decimal.NewFromInt(amount), models.TransferTypeInterbank)
		assert.True(t, fee.GreaterThanOrEqual(prev), "fee decreased at amount %d", amount)
		prev = fee
	}
}
