package ledger

import (
	"github.com/aristath/brickvault/internal/domain"
	"github.com/shopspring/decimal"
)

// Fold derives the wallet balance of an account from its transaction history.
// It is the single definition of balance; every cached value must equal it.
//
//	spendable       = Σ amount of completed transactions (amounts are signed)
//	totalInvested   = Σ |amount| of completed investments
//	totalEarnings   = Σ amount of completed rental income
//	pendingDeposits = Σ amount of pending deposits
//
// Failed transactions contribute nothing.
func Fold(accountID string, txs []domain.Transaction) domain.WalletBalance {
	b := domain.WalletBalance{
		AccountID:       accountID,
		Spendable:       decimal.Zero,
		TotalInvested:   decimal.Zero,
		TotalEarnings:   decimal.Zero,
		PendingDeposits: decimal.Zero,
	}
	for i := range txs {
		apply(&b, &txs[i])
	}
	return b
}

func apply(b *domain.WalletBalance, t *domain.Transaction) {
	if t.Seq > b.AsOfSeq {
		b.AsOfSeq = t.Seq
	}

	switch t.Status {
	case domain.StatusPending:
		if t.Kind == domain.KindDeposit {
			b.PendingDeposits = b.PendingDeposits.Add(t.Amount)
		}
		return
	case domain.StatusCompleted:
	default:
		return
	}

	b.Spendable = b.Spendable.Add(t.Amount)
	switch t.Kind {
	case domain.KindInvestment:
		b.TotalInvested = b.TotalInvested.Sub(t.Amount)
	case domain.KindRentalIncome:
		b.TotalEarnings = b.TotalEarnings.Add(t.Amount)
	}
}
