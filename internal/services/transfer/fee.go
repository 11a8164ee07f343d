package transfer

import (
	"github.com/shopspring/decimal"

	"transferhub/internal/models"
)

// Fee schedule. All values are currency-minor-unit-agnostic constants.
var (
	baseFee             = decimal.NewFromInt(10)
	interbankSurcharge  = decimal.NewFromInt(25)
	percentageThreshold = decimal.NewFromInt(50_000)
	percentageRate      = decimal.New(1, -3) // 0.1%
	feeCap              = decimal.NewFromInt(5_000)
)

// CalculateFee computes the transfer fee: base 10, plus 25 for interbank,
// plus 0.1% of the full amount once it exceeds 50,000, capped at 5,000.
// Pure and deterministic; exact decimal arithmetic throughout.
func CalculateFee(amount decimal.Decimal, transferType string) decimal.Decimal {
	fee := baseFee

	if transferType == models.TransferTypeInterbank {
		fee = fee.Add(interbankSurcharge)
	}

	if amount.GreaterThan(percentageThreshold) {
		fee = fee.Add(amount.Mul(percentageRate))
	}

	if fee.GreaterThan(feeCap) {
		return feeCap
	}
	return fee
}
