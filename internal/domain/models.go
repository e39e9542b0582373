// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency represents the ledger unit code
type Currency string

const (
	// CurrencyUSDC is the custodial stable-value unit every ledger amount is denominated in
	CurrencyUSDC Currency = "USDC"
)

// TransactionKind is the type of a ledger transaction
type TransactionKind string

const (
	KindDeposit      TransactionKind = "deposit"
	KindWithdraw     TransactionKind = "withdraw"
	KindInvestment   TransactionKind = "investment"
	KindRentalIncome TransactionKind = "rental_income"
	KindTransfer     TransactionKind = "transfer"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindInvestment, KindRentalIncome, KindTransfer:
		return true
	}
	return false
}

// TransactionStatus is the settlement state of a transaction.
// pending -> completed|failed is the only legal transition.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Account owns a derived wallet balance and an ordered transaction history.
// Accounts are never deleted, only deactivated.
type Account struct {
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	ID            string     `json:"id"`
	DisplayName   string     `json:"display_name"`
	WalletAddress string     `json:"wallet_address,omitempty"`
	Active        bool       `json:"active"`
}

// Transaction is an immutable ledger record. Amount is signed: credits are
// positive, debits negative.
type Transaction struct {
	CreatedAt     time.Time         `json:"created_at"`
	SettledAt     *time.Time        `json:"settled_at,omitempty"`
	ID            string            `json:"id"`
	AccountID     string            `json:"account_id"`
	Kind          TransactionKind   `json:"kind"`
	Status        TransactionStatus `json:"status"`
	Currency      Currency          `json:"currency"`
	PropertyID    string            `json:"property_id,omitempty"`
	PropertyTitle string            `json:"property_title,omitempty"`
	ExternalRef   string            `json:"external_ref,omitempty"`
	Method        string            `json:"method,omitempty"`
	Compensates   string            `json:"compensates,omitempty"`
	Memo          string            `json:"memo,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Seq           int64             `json:"seq"`
}

// WalletBalance is a materialized view over an account's transactions.
type WalletBalance struct {
	AccountID       string          `json:"account_id"`
	Spendable       decimal.Decimal `json:"spendable"`
	TotalInvested   decimal.Decimal `json:"total_invested"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
	PendingDeposits decimal.Decimal `json:"pending_deposits"`
	// AsOfSeq is the sequence number of the last transaction folded in.
	AsOfSeq int64 `json:"as_of_seq"`
}

// Equal compares the monetary fields of two balances.
func (b WalletBalance) Equal(o WalletBalance) bool {
	return b.AccountID == o.AccountID &&
		b.Spendable.Equal(o.Spendable) &&
		b.TotalInvested.Equal(o.TotalInvested) &&
		b.TotalEarnings.Equal(o.TotalEarnings) &&
		b.PendingDeposits.Equal(o.PendingDeposits)
}

// Investment is a position created by exactly one completed investment transaction.
// ROI and yield are derived on read, never stored.
type Investment struct {
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	PropertyID     string          `json:"property_id"`
	TransactionID  string          `json:"transaction_id"`
	TokensHeld     decimal.Decimal `json:"tokens_held"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	CurrentValue   decimal.Decimal `json:"current_value"`
}

// Holdings is an account's positions and wallet balance taken from one
// snapshot of the ledger, so Balance.TotalInvested always matches the
// invested amounts of Investments.
type Holdings struct {
	Investments []Investment
	Balance     WalletBalance
}

// Property is a tokenized real-estate listing. ExpectedROI and RentalYield are
// annual percentages.
type Property struct {
	CreatedAt   time.Time       `json:"created_at" msgpack:"created_at"`
	ID          string          `json:"id" msgpack:"id"`
	Title       string          `json:"title" msgpack:"title"`
	Location    string          `json:"location" msgpack:"location"`
	TokenPrice  decimal.Decimal `json:"token_price" msgpack:"token_price"`
	ExpectedROI decimal.Decimal `json:"expected_roi" msgpack:"expected_roi"`
	RentalYield decimal.Decimal `json:"rental_yield" msgpack:"rental_yield"`
}

// Frequency of a recurring deposit
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// PeriodsPerYear returns how many deposits the frequency makes per year.
func (f Frequency) PeriodsPerYear() (int64, error) {
	switch f {
	case FrequencyWeekly:
		return 52, nil
	case FrequencyMonthly:
		return 12, nil
	case FrequencyQuarterly:
		return 4, nil
	}
	return 0, ErrInvalidFrequency
}

// RecurringDeposit is a scheduled top-up used by plan projections.
type RecurringDeposit struct {
	Amount    decimal.Decimal `json:"amount" msgpack:"amount"`
	Frequency Frequency       `json:"frequency" msgpack:"frequency"`
}

// InvestmentPlan is the planning scratchpad. Optional fields are nil until set.
type InvestmentPlan struct {
	InvestmentAmount          decimal.Decimal   `json:"investment_amount" msgpack:"investment_amount"`
	MonthlyIncomeGoal         *decimal.Decimal  `json:"monthly_income_goal,omitempty" msgpack:"monthly_income_goal,omitempty"`
	EstimatedInvestmentNeeded *decimal.Decimal  `json:"estimated_investment_needed,omitempty" msgpack:"estimated_investment_needed,omitempty"`
	SelectedProperty          *Property         `json:"selected_property,omitempty" msgpack:"selected_property,omitempty"`
	ExpectedMonthlyReturn     *decimal.Decimal  `json:"expected_monthly_return,omitempty" msgpack:"expected_monthly_return,omitempty"`
	EstimatedROI              *decimal.Decimal  `json:"estimated_roi,omitempty" msgpack:"estimated_roi,omitempty"`
	RecurringDeposit          *RecurringDeposit `json:"recurring_deposit,omitempty" msgpack:"recurring_deposit,omitempty"`
	FirstDepositDate          *time.Time        `json:"first_deposit_date,omitempty" msgpack:"first_deposit_date,omitempty"`
}

// DefaultInvestmentAmount is the investment amount of a freshly reset plan.
var DefaultInvestmentAmount = decimal.NewFromInt(1000)

// DefaultPlan returns the plan a session starts from and resets to.
func DefaultPlan() InvestmentPlan {
	return InvestmentPlan{InvestmentAmount: DefaultInvestmentAmount}
}

// SavedPlan is an immutable, explicitly persisted plan snapshot.
type SavedPlan struct {
	CreatedAt time.Time      `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" msgpack:"updated_at"`
	ID        string         `json:"id" msgpack:"id"`
	AccountID string         `json:"account_id" msgpack:"account_id"`
	Plan      InvestmentPlan `json:"plan" msgpack:"plan"`
}

// OnChainBalanceSnapshot is an ephemeral observation of a token balance.
type OnChainBalanceSnapshot struct {
	ObservedAt      time.Time `json:"observed_at"`
	ContractAddress string    `json:"contract_address"`
	WalletAddress   string    `json:"wallet_address"`
	RawBalance      string    `json:"raw_balance"` // base-10 integer in the token's smallest unit
	ChainID         int64     `json:"chain_id"`
	Decimals        int32     `json:"decimals"`
}

// ReconciliationReport compares an on-chain balance with the ledger's spendable balance.
// It is advisory: a mismatch is reported, never corrected.
type ReconciliationReport struct {
	Snapshot        OnChainBalanceSnapshot `json:"snapshot"`
	AccountID       string                 `json:"account_id"`
	OnChainBalance  decimal.Decimal        `json:"on_chain_balance"`
	LedgerBalance   decimal.Decimal        `json:"ledger_balance"`
	Delta           decimal.Decimal        `json:"delta"`
	Tolerance       decimal.Decimal        `json:"tolerance"`
	WithinTolerance bool                   `json:"within_tolerance"`
}
