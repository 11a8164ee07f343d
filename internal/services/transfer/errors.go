package transfer

import (
	"errors"
	"fmt"
)

// Service errors
var (
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrBulkNotFound      = errors.New("bulk transfer not found")
	ErrNotCancellable    = errors.New("only pending transfers can be cancelled")
)

// Validation reason codes surfaced to clients.
const (
	CodeInsufficientFunds         = "INSUFFICIENT_FUNDS"
	CodePerTransactionLimit       = "PER_TRANSACTION_LIMIT_EXCEEDED"
	CodeDailyLimit                = "DAILY_LIMIT_EXCEEDED"
	CodeWeeklyLimit               = "WEEKLY_LIMIT_EXCEEDED"
	CodeMonthlyLimit              = "MONTHLY_LIMIT_EXCEEDED"
	CodeRegulatoryLimit           = "REGULATORY_LIMIT_EXCEEDED"
	CodeSenderAccountInactive     = "SENDER_ACCOUNT_INACTIVE"
	CodeRecipientAccountInactive  = "RECIPIENT_ACCOUNT_INACTIVE"
	CodeCurrencyMismatch          = "CURRENCY_MISMATCH"
	CodeAccountNotFound           = "ACCOUNT_NOT_FOUND"
	CodeComplianceCheckFailed     = "COMPLIANCE_CHECK_FAILED"
)

// ValidationError is a rejected request with a machine-readable reason code.
// It is raised synchronously during creation and mapped to a client error.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a ValidationError with the given code.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var validationMessages = map[string]string{
	CodeInsufficientFunds:        "available balance is below the transfer amount plus fee",
	CodePerTransactionLimit:      "amount exceeds the per-transaction limit",
	CodeDailyLimit:               "amount exceeds the remaining daily limit",
	CodeWeeklyLimit:              "amount exceeds the remaining weekly limit",
	CodeMonthlyLimit:             "amount exceeds the remaining monthly limit",
	CodeRegulatoryLimit:          "amount exceeds the regulatory interbank ceiling",
	CodeSenderAccountInactive:    "sender account is not active",
	CodeRecipientAccountInactive: "recipient account is not active",
	CodeCurrencyMismatch:         "sender and recipient account currencies differ",
	CodeAccountNotFound:          "account does not exist",
	CodeComplianceCheckFailed:    "transfer did not pass compliance screening",
}

// validationFailure maps a collaborator error, whose message is the reason
// code, onto a ValidationError.
func validationFailure(err error) *ValidationError {
	code := err.Error()
	msg, ok := validationMessages[code]
	if !ok {
		msg = "transfer validation failed"
	}
	return NewValidationError(code, msg)
}
