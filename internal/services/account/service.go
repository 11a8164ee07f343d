// Package account provides the account ledger collaborator: balance lookup,
// debit/credit, and account validation. The in-memory implementation stands
// in for the real ledger service and keeps genuine balances so debit and
// compensating credit behave like the real thing.
package account

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Collaborator error codes surfaced to the validation layer.
var (
	ErrAccountNotFound           = errors.New("ACCOUNT_NOT_FOUND")
	ErrInsufficientFunds         = errors.New("INSUFFICIENT_FUNDS")
	ErrSenderAccountInactive     = errors.New("SENDER_ACCOUNT_INACTIVE")
	ErrRecipientAccountInactive  = errors.New("RECIPIENT_ACCOUNT_INACTIVE")
	ErrCurrencyMismatch          = errors.New("CURRENCY_MISMATCH")
)

// Account statuses
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
	StatusFrozen   = "FROZEN"
)

// Account is the ledger view of a customer account.
type Account struct {
	ID               string
	AccountNumber    string
	UserID           string
	Balance          decimal.Decimal
	AvailableBalance decimal.Decimal
	Currency         string
	Type             string
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BalanceUpdate is the result of a debit or credit.
type BalanceUpdate struct {
	NewBalance          decimal.Decimal
	NewAvailableBalance decimal.Decimal
	TransactionID       string
}

// ValidationResult reports whether two accounts can transact.
type ValidationResult struct {
	Sender    *Account
	Recipient *Account
	IsValid   bool
}

// Service is the account ledger contract consumed by the orchestrator.
type Service interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// DebitAccount performs the balance check and the debit as one atomic
	// step; it fails with ErrInsufficientFunds without moving money.
	DebitAccount(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*BalanceUpdate, error)

	CreditAccount(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*BalanceUpdate, error)

	// ValidateAccounts fails closed when either party is inactive or the
	// currencies differ.
	ValidateAccounts(ctx context.Context, senderID, recipientID string) (*ValidationResult, error)
}

type inMemoryService struct {
	mu       sync.Mutex
	accounts map[string]*Account
	seq      int64
}

// NewInMemoryService creates an in-memory ledger seeded with the given
// accounts.
func NewInMemoryService(seed ...*Account) Service {
	s := &inMemoryService{accounts: make(map[string]*Account)}
	for _, acct := range seed {
		copy := *acct
		s.accounts[acct.ID] = &copy
	}
	return s
}

func (s *inMemoryService) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copy := *acct
	return &copy, nil
}

func (s *inMemoryService) DebitAccount(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*BalanceUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if acct.AvailableBalance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	acct.Balance = acct.Balance.Sub(amount)
	acct.AvailableBalance = acct.AvailableBalance.Sub(amount)
	acct.UpdatedAt = time.Now()
	s.seq++

	log.Printf("DEBIT: account=%s amount=%s ref=%s", accountID, amount, reference)

	return &BalanceUpdate{
		NewBalance:          acct.Balance,
		NewAvailableBalance: acct.AvailableBalance,
		TransactionID:       fmt.Sprintf("ledger-%d", s.seq),
	}, nil
}

func (s *inMemoryService) CreditAccount(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*BalanceUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	acct.Balance = acct.Balance.Add(amount)
	acct.AvailableBalance = acct.AvailableBalance.Add(amount)
	acct.UpdatedAt = time.Now()
	s.seq++

	log.Printf("CREDIT: account=%s amount=%s ref=%s", accountID, amount, reference)

	return &BalanceUpdate{
		NewBalance:          acct.Balance,
		NewAvailableBalance: acct.AvailableBalance,
		TransactionID:       fmt.Sprintf("ledger-%d", s.seq),
	}, nil
}

func (s *inMemoryService) ValidateAccounts(ctx context.Context, senderID, recipientID string) (*ValidationResult, error) {
	sender, err := s.GetAccount(ctx, senderID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.GetAccount(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	if sender.Status != StatusActive {
		return nil, ErrSenderAccountInactive
	}
	if recipient.Status != StatusActive {
		return nil, ErrRecipientAccountInactive
	}
	if sender.Currency != recipient.Currency {
		return nil, ErrCurrencyMismatch
	}

	return &ValidationResult{Sender: sender, Recipient: recipient, IsValid: true}, nil
}
