package domain

import (
	"errors"
	"fmt"
)

// Ledger errors
var (
	// ErrInvalidAmount - non-positive or malformed monetary input
	ErrInvalidAmount = errors.New("amount must be a positive decimal")
	// ErrInsufficientFunds - the debit exceeds the spendable balance
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound - no account with this id or wallet address
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountInactive - the account has been deactivated and accepts no mutations
	ErrAccountInactive = errors.New("account is inactive")
	// ErrTransactionNotFound - no transaction with this id
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidTransition - only pending -> completed|failed is legal, and only once
	ErrInvalidTransition = errors.New("invalid transaction state transition")
	// ErrPropertyNotFound - the referenced property is not in the catalog
	ErrPropertyNotFound = errors.New("property not found")
	// ErrInvalidProperty - a listing is missing its title or has a non-positive token price
	ErrInvalidProperty = errors.New("invalid property")
	// ErrInvestmentNotFound - no investment with this id
	ErrInvestmentNotFound = errors.New("investment not found")
	// ErrInvalidAddress - a wallet or contract address is missing or malformed
	ErrInvalidAddress = errors.New("invalid address")
	// ErrSelfTransfer - source and destination of a transfer are the same account
	ErrSelfTransfer = errors.New("cannot transfer to the same account")
	// ErrWalletAlreadyLinked - the wallet address belongs to another account
	ErrWalletAlreadyLinked = errors.New("wallet address already linked to another account")
)

// Planning errors
var (
	// ErrInvalidGoal - monthly income goal is negative
	ErrInvalidGoal = errors.New("monthly income goal must not be negative")
	// ErrInvalidYield - expected yield is zero or negative, the plan is undefined
	ErrInvalidYield = errors.New("expected yield must be positive")
	// ErrInvalidFrequency - unknown recurring deposit frequency
	ErrInvalidFrequency = errors.New("unknown deposit frequency")
	// ErrPlanNotFound - no saved plan with this id
	ErrPlanNotFound = errors.New("saved plan not found")
)

// Infrastructure errors
var (
	// ErrReconciliationUnavailable - transient failure of the chain indexer, safe to retry
	ErrReconciliationUnavailable = errors.New("reconciliation source unavailable")
	// ErrInvalidExternalResponse - the chain indexer answered but broke its contract
	ErrInvalidExternalResponse = errors.New("invalid external response")
	// ErrPersistenceFailure - the store failed, nothing was applied
	ErrPersistenceFailure = errors.New("persistence failure")
)

// ExternalError describes a failed call to a third-party service. It unwraps
// to one of ErrReconciliationUnavailable or ErrInvalidExternalResponse so callers
// can branch with errors.Is while still seeing the provider detail.
type ExternalError struct {
	Kind            error             // sentinel the error unwraps to
	Provider        string            // e.g. "chainindexer"
	ProviderMessage string            // message returned by the provider, if any
	StatusCode      int               // HTTP status, 0 when the request never completed
	Attempted       map[string]string // request parameters, secrets excluded
	Cause           error
}

func (e *ExternalError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.ProviderMessage != "" {
		msg += ": " + e.ProviderMessage
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *ExternalError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Retryable reports whether the failure is transient.
func (e *ExternalError) Retryable() bool {
	return errors.Is(e.Kind, ErrReconciliationUnavailable)
}

// Persistence wraps a store error so it matches ErrPersistenceFailure.
// Domain errors pass through untouched.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistenceFailure, err)
}

// IsDomainError reports whether err matches one of the business-rule sentinels above.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInsufficientFunds, ErrAccountNotFound, ErrAccountInactive,
		ErrTransactionNotFound, ErrInvalidTransition, ErrPropertyNotFound, ErrInvalidProperty, ErrInvestmentNotFound,
		ErrWalletAlreadyLinked, ErrSelfTransfer, ErrInvalidAddress,
		ErrInvalidGoal, ErrInvalidYield, ErrInvalidFrequency, ErrPlanNotFound,
		ErrReconciliationUnavailable, ErrInvalidExternalResponse, ErrPersistenceFailure,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
