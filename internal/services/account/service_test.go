package account

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(id, currency, status string, balance int64) *Account {
	return &Account{
		ID:               id,
		AccountNumber:    "0123456789",
		Balance:          decimal.NewFromInt(balance),
		AvailableBalance: decimal.NewFromInt(balance),
		Currency:         currency,
		Status:           status,
	}
}

func TestValidateAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts two active accounts in the same currency", func(t *testing.T) {
		svc := NewInMemoryService(
			testAccount("acc-1", "NGN", StatusActive, 100_000),
			testAccount("acc-2", "NGN", StatusActive, 0),
		)

		result, err := svc.ValidateAccounts(ctx, "acc-1", "acc-2")
		require.NoError(t, err)
		assert.True(t, result.IsValid)
		assert.Equal(t, "acc-1", result.Sender.ID)
		assert.Equal(t, "acc-2", result.Recipient.ID)
	})

	t.Run("rejects a frozen recipient", func(t *testing.T) {
		svc := NewInMemoryService(
			testAccount("acc-1", "NGN", StatusActive, 100_000),
			testAccount("acc-2", "NGN", StatusFrozen, 0),
		)

		_, err := svc.ValidateAccounts(ctx, "acc-1", "acc-2")
		assert.ErrorIs(t, err, ErrRecipientAccountInactive)
	})

	t.Run("rejects an inactive sender", func(t *testing.T) {
		svc := NewInMemoryService(
			testAccount("acc-1", "NGN", StatusInactive, 100_000),
			testAccount("acc-2", "NGN", StatusActive, 0),
		)

		_, err := svc.ValidateAccounts(ctx, "acc-1", "acc-2")
		assert.ErrorIs(t, err, ErrSenderAccountInactive)
	})

	t.Run("rejects a currency mismatch", func(t *testing.T) {
		svc := NewInMemoryService(
			testAccount("acc-1", "NGN", StatusActive, 100_000),
			testAccount("acc-2", "USD", StatusActive, 0),
		)

		_, err := svc.ValidateAccounts(ctx, "acc-1", "acc-2")
		assert.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("rejects an unknown account", func(t *testing.T) {
		svc := NewInMemoryService(testAccount("acc-1", "NGN", StatusActive, 100_000))

		_, err := svc.ValidateAccounts(ctx, "acc-1", "acc-missing")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestDebitAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("debits balance and available balance together", func(t *testing.T) {
		svc := NewInMemoryService(testAccount("acc-1", "NGN", StatusActive, 100_000))

		update, err := svc.DebitAccount(ctx, "acc-1", decimal.NewFromInt(40_000), "TF-1")
		require.NoError(t, err)
		assert.True(t, update.NewBalance.Equal(decimal.NewFromInt(60_000)))
		assert.True(t, update.NewAvailableBalance.Equal(decimal.NewFromInt(60_000)))
		assert.NotEmpty(t, update.TransactionID)
	})

	t.Run("fails without moving money when funds are short", func(t *testing.T) {
		svc := NewInMemoryService(testAccount("acc-1", "NGN", StatusActive, 100))

		_, err := svc.DebitAccount(ctx, "acc-1", decimal.NewFromInt(200), "TF-1")
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		acct, err := svc.GetAccount(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, acct.Balance.Equal(decimal.NewFromInt(100)))
	})
}
