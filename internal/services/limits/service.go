// Package limits provides the transfer limit and AML compliance collaborator.
package limits

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"transferhub/internal/models"
)

// Limit breach error codes.
var (
	ErrUserLimitsNotFound          = errors.New("USER_LIMITS_NOT_FOUND")
	ErrPerTransactionLimitExceeded = errors.New("PER_TRANSACTION_LIMIT_EXCEEDED")
	ErrDailyLimitExceeded          = errors.New("DAILY_LIMIT_EXCEEDED")
	ErrWeeklyLimitExceeded         = errors.New("WEEKLY_LIMIT_EXCEEDED")
	ErrMonthlyLimitExceeded        = errors.New("MONTHLY_LIMIT_EXCEEDED")
	ErrRegulatoryLimitExceeded     = errors.New("REGULATORY_LIMIT_EXCEEDED")
)

// regulatoryInterbankCeiling is the maximum single interbank transfer.
var regulatoryInterbankCeiling = decimal.NewFromInt(10_000_000)

// largeTransactionThreshold triggers an AML reporting flag.
var largeTransactionThreshold = decimal.NewFromInt(5_000_000)

// LimitCheck describes a transfer being evaluated against limits.
type LimitCheck struct {
	AccountID    string
	Amount       decimal.Decimal
	Currency     string
	TransferType string // INTRA_BANK or INTERBANK
	RequestClass string // single, bulk, or recurring
}

// ComplianceCheck describes a transfer being screened for AML.
type ComplianceCheck struct {
	AccountID          string
	RecipientAccountID string
	Amount             decimal.Decimal
	TransferType       string
}

// AMLFlag is one rule hit from the compliance screen.
type AMLFlag struct {
	Level          string
	Rule           string
	Description    string
	RequiresReview bool
}

// ComplianceResult is the outcome of an AML screen.
type ComplianceResult struct {
	Approved             bool
	Flags                []AMLFlag
	RiskScore            int
	RequiresManualReview bool
	CheckedAt            time.Time
}

// UserLimits are the per-account transfer ceilings and remaining headroom.
type UserLimits struct {
	AccountID             string
	Tier                  string
	PerTransactionLimit   decimal.Decimal
	RemainingDailyLimit   decimal.Decimal
	RemainingWeeklyLimit  decimal.Decimal
	RemainingMonthlyLimit decimal.Decimal
	Currency              string
}

// Service is the limit/compliance contract consumed by the orchestrator.
type Service interface {
	ValidateTransferLimits(ctx context.Context, check LimitCheck) error
	CheckAMLCompliance(ctx context.Context, check ComplianceCheck) (*ComplianceResult, error)
}

// NewInMemoryService creates a limit service seeded with per-account limits.
// Accounts without seeded limits get the default tier.
func NewInMemoryService(seed ...*UserLimits) *InMemoryService {
	s := &InMemoryService{
		limits: make(map[string]*UserLimits),
		denied: make(map[string]bool),
	}
	for _, l := range seed {
		copy := *l
		s.limits[l.AccountID] = &copy
	}
	return s
}

// InMemoryService is the mock limit/compliance collaborator.
type InMemoryService struct {
	mu     sync.Mutex
	limits map[string]*UserLimits
	denied map[string]bool
}

// DenyCompliance makes subsequent AML checks for the account fail. Test hook.
func (s *InMemoryService) DenyCompliance(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[accountID] = true
}

func (s *InMemoryService) limitsFor(accountID string) *UserLimits {
	if l, ok := s.limits[accountID]; ok {
		return l
	}
	// Default tier for unseeded accounts.
	l := &UserLimits{
		AccountID:             accountID,
		Tier:                  "gold",
		PerTransactionLimit:   decimal.NewFromInt(1_000_000),
		RemainingDailyLimit:   decimal.NewFromInt(5_000_000),
		RemainingWeeklyLimit:  decimal.NewFromInt(20_000_000),
		RemainingMonthlyLimit: decimal.NewFromInt(100_000_000),
		Currency:              "NGN",
	}
	s.limits[accountID] = l
	return l
}

// ValidateTransferLimits checks the per-transaction, remaining period, and
// regulatory interbank ceilings in order.
func (s *InMemoryService) ValidateTransferLimits(ctx context.Context, check LimitCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.limitsFor(check.AccountID)

	if check.Amount.GreaterThan(l.PerTransactionLimit) {
		return ErrPerTransactionLimitExceeded
	}
	if check.Amount.GreaterThan(l.RemainingDailyLimit) {
		return ErrDailyLimitExceeded
	}
	if check.Amount.GreaterThan(l.RemainingWeeklyLimit) {
		return ErrWeeklyLimitExceeded
	}
	if check.Amount.GreaterThan(l.RemainingMonthlyLimit) {
		return ErrMonthlyLimitExceeded
	}
	if check.TransferType == models.TransferTypeInterbank && check.Amount.GreaterThan(regulatoryInterbankCeiling) {
		return ErrRegulatoryLimitExceeded
	}
	return nil
}

// CheckAMLCompliance screens the transfer. Large transactions are flagged
// for reporting but still approved unless the account is explicitly denied.
func (s *InMemoryService) CheckAMLCompliance(ctx context.Context, check ComplianceCheck) (*ComplianceResult, error) {
	s.mu.Lock()
	denied := s.denied[check.AccountID]
	s.mu.Unlock()

	var flags []AMLFlag
	if check.Amount.GreaterThan(largeTransactionThreshold) {
		flags = append(flags, AMLFlag{
			Level:          "HIGH",
			Rule:           "LARGE_TRANSACTION",
			Description:    "Transaction exceeds large transaction reporting threshold",
			RequiresReview: true,
		})
	}

	requiresReview := false
	for _, f := range flags {
		if f.RequiresReview {
			requiresReview = true
		}
	}

	return &ComplianceResult{
		Approved:             !denied,
		Flags:                flags,
		RiskScore:            len(flags) * 25,
		RequiresManualReview: requiresReview,
		CheckedAt:            time.Now(),
	}, nil
}
