package ledger

import (
	"testing"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func tx(seq int64, kind domain.TransactionKind, amount string, status domain.TransactionStatus) domain.Transaction {
	return domain.Transaction{
		Seq:    seq,
		Kind:   kind,
		Amount: decimal.RequireFromString(amount),
		Status: status,
	}
}

func TestFold_Empty(t *testing.T) {
	b := Fold("acc-1", nil)

	assert.Equal(t, "acc-1", b.AccountID)
	assert.True(t, b.Spendable.IsZero())
	assert.True(t, b.TotalInvested.IsZero())
	assert.True(t, b.TotalEarnings.IsZero())
	assert.True(t, b.PendingDeposits.IsZero())
	assert.Equal(t, int64(0), b.AsOfSeq)
}

func TestFold(t *testing.T) {
	tests := []struct {
		name      string
		txs       []domain.Transaction
		spendable string
		invested  string
		earnings  string
		pending   string
	}{
		{
			name: "completed deposit counts",
			txs: []domain.Transaction{
				tx(1, domain.KindDeposit, "100", domain.StatusCompleted),
			},
			spendable: "100", invested: "0", earnings: "0", pending: "0",
		},
		{
			name: "pending deposit is only pending",
			txs: []domain.Transaction{
				tx(1, domain.KindDeposit, "100", domain.StatusPending),
			},
			spendable: "0", invested: "0", earnings: "0", pending: "100",
		},
		{
			name: "failed transactions count nothing",
			txs: []domain.Transaction{
				tx(1, domain.KindDeposit, "100", domain.StatusFailed),
				tx(2, domain.KindWithdraw, "-40", domain.StatusFailed),
			},
			spendable: "0", invested: "0", earnings: "0", pending: "0",
		},
		{
			name: "deposit, invest, income and withdraw",
			txs: []domain.Transaction{
				tx(1, domain.KindDeposit, "1000", domain.StatusCompleted),
				tx(2, domain.KindInvestment, "-600", domain.StatusCompleted),
				tx(3, domain.KindRentalIncome, "12.50", domain.StatusCompleted),
				tx(4, domain.KindWithdraw, "-100", domain.StatusCompleted),
				tx(5, domain.KindDeposit, "50", domain.StatusPending),
			},
			spendable: "312.5", invested: "600", earnings: "12.5", pending: "50",
		},
		{
			name: "transfers move spendable only",
			txs: []domain.Transaction{
				tx(1, domain.KindDeposit, "200", domain.StatusCompleted),
				tx(2, domain.KindTransfer, "-75", domain.StatusCompleted),
				tx(3, domain.KindTransfer, "25", domain.StatusCompleted),
			},
			spendable: "150", invested: "0", earnings: "0", pending: "0",
		},
		{
			name: "compensated income reduces earnings",
			txs: []domain.Transaction{
				tx(1, domain.KindRentalIncome, "30", domain.StatusCompleted),
				tx(2, domain.KindRentalIncome, "-30", domain.StatusCompleted),
			},
			spendable: "0", invested: "0", earnings: "0", pending: "0",
		},
		{
			name: "decimal amounts are exact",
			txs: []domain.Transaction{
				tx(1, domain.KindDeposit, "0.1", domain.StatusCompleted),
				tx(2, domain.KindDeposit, "0.2", domain.StatusCompleted),
			},
			spendable: "0.3", invested: "0", earnings: "0", pending: "0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := Fold("acc", tc.txs)

			assert.True(t, decimal.RequireFromString(tc.spendable).Equal(b.Spendable), "spendable %s", b.Spendable)
			assert.True(t, decimal.RequireFromString(tc.invested).Equal(b.TotalInvested), "invested %s", b.TotalInvested)
			assert.True(t, decimal.RequireFromString(tc.earnings).Equal(b.TotalEarnings), "earnings %s", b.TotalEarnings)
			assert.True(t, decimal.RequireFromString(tc.pending).Equal(b.PendingDeposits), "pending %s", b.PendingDeposits)
			assert.Equal(t, tc.txs[len(tc.txs)-1].Seq, b.AsOfSeq)
		})
	}
}

func TestFold_IncrementalMatchesFull(t *testing.T) {
	txs := []domain.Transaction{
		tx(1, domain.KindDeposit, "500", domain.StatusCompleted),
		tx(2, domain.KindInvestment, "-200", domain.StatusCompleted),
		tx(3, domain.KindDeposit, "80", domain.StatusPending),
		tx(4, domain.KindRentalIncome, "4.25", domain.StatusCompleted),
	}

	running := Fold("acc", nil)
	for i := range txs {
		apply(&running, &txs[i])
		assert.True(t, Fold("acc", txs[:i+1]).Equal(running), "prefix %d", i+1)
	}
}
