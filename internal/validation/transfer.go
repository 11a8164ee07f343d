package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"transferhub/internal/models"
)

// Request bounds.
const (
	MinAccountNumberLen = 10
	MaxAccountNumberLen = 20
	MaxRecipientNameLen = 255
	MaxNarrationLen     = 140
	MaxBulkTransfers    = 100
)

// TransferAmount checks that an amount is present and strictly positive.
func (v *Validator) TransferAmount(field string, amount decimal.Decimal) {
	v.Check(amount.IsPositive(), field, "must be greater than zero")
}

// TransferType checks an explicit transfer type value.
func (v *Validator) TransferType(field, transferType string) {
	switch transferType {
	case models.TransferTypeIntraBank, models.TransferTypeInterbank:
	default:
		v.AddError(field, fmt.Sprintf("must be %s or %s", models.TransferTypeIntraBank, models.TransferTypeInterbank))
	}
}

// AccountNumber checks NUBAN-style account number length.
func (v *Validator) AccountNumber(field, number string) {
	v.Check(len(number) >= MinAccountNumberLen && len(number) <= MaxAccountNumberLen,
		field, fmt.Sprintf("must be between %d and %d characters", MinAccountNumberLen, MaxAccountNumberLen))
}

// RecipientName checks the recipient display name.
func (v *Validator) RecipientName(field, name string) {
	v.Check(name != "", field, "must not be empty")
	v.Check(len(name) <= MaxRecipientNameLen, field, fmt.Sprintf("must be at most %d characters", MaxRecipientNameLen))
}

// Narration checks the optional narration length.
func (v *Validator) Narration(field, narration string) {
	v.Check(len(narration) <= MaxNarrationLen, field, fmt.Sprintf("must be at most %d characters", MaxNarrationLen))
}

// Frequency checks a recurring frequency value.
func (v *Validator) Frequency(field, frequency string) {
	switch frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
	default:
		v.AddError(field, "must be DAILY, WEEKLY, MONTHLY or YEARLY")
	}
}

// InterbankFields checks the recipient bank code requirement for interbank
// transfers.
func (v *Validator) InterbankFields(transferType, bankCode string) {
	if transferType == models.TransferTypeInterbank {
		v.Check(bankCode != "", "recipientBankCode", "is required for interbank transfers")
	}
}
