// Package events provides an in-process event bus for ledger and planning activity.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// Ledger events
	AccountCreated         EventType = "ACCOUNT_CREATED"
	AccountDeactivated     EventType = "ACCOUNT_DEACTIVATED"
	WalletLinked           EventType = "WALLET_LINKED"
	DepositCreated         EventType = "DEPOSIT_CREATED"
	DepositConfirmed       EventType = "DEPOSIT_CONFIRMED"
	DepositFailed          EventType = "DEPOSIT_FAILED"
	WithdrawalCompleted    EventType = "WITHDRAWAL_COMPLETED"
	InvestmentRecorded     EventType = "INVESTMENT_RECORDED"
	RentalIncomeRecorded   EventType = "RENTAL_INCOME_RECORDED"
	TransferCompleted      EventType = "TRANSFER_COMPLETED"
	TransactionCompensated EventType = "TRANSACTION_COMPENSATED"
	ValuationUpdated       EventType = "VALUATION_UPDATED"

	// Reconciliation and planning events
	ReconciliationDrift EventType = "RECONCILIATION_DRIFT"
	PlanSaved           EventType = "PLAN_SAVED"
	PlanDeleted         EventType = "PLAN_DELETED"

	// System events
	BackupCompleted EventType = "BACKUP_COMPLETED"
)

// AllEventTypes lists every event type a stream subscriber can receive.
var AllEventTypes = []EventType{
	AccountCreated, AccountDeactivated, WalletLinked,
	DepositCreated, DepositConfirmed, DepositFailed,
	WithdrawalCompleted, InvestmentRecorded, RentalIncomeRecorded,
	TransferCompleted, TransactionCompensated, ValuationUpdated,
	ReconciliationDrift, PlanSaved, PlanDeleted, BackupCompleted,
}

// Event represents a system event
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Type      EventType              `json:"type"`
	Module    string                 `json:"module"`
	// AccountID scopes the event to one account, empty for system events.
	AccountID string `json:"account_id,omitempty"`
}
