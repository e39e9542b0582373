package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/brickvault/internal/database"
	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/events"
	"github.com/aristath/brickvault/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// PropertyCatalog resolves properties referenced by investments and rental income
type PropertyCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Property, error)
}

// EventEmitter publishes ledger events after a mutation commits
type EventEmitter interface {
	Emit(eventType events.EventType, module, accountID string, data map[string]interface{})
}

// Service is the ledger of record. It owns one mutation lock per account and
// is the only writer of ledger.db.
//
// Every mutation runs "fold history, validate, append" inside a single SQLite
// transaction while holding the account's write lock, so two requests can
// never both pass a funds check against the same snapshot. The balance cache
// is refreshed from a fold taken inside that same transaction.
type Service struct {
	repo     *Repository
	catalog  PropertyCatalog
	emitter  EventEmitter
	locks    *accountLocks
	cache    *balanceCache
	currency domain.Currency
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates the ledger service. emitter may be nil.
func NewService(repo *Repository, catalog PropertyCatalog, emitter EventEmitter, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		emitter:  emitter,
		locks:    newAccountLocks(),
		cache:    newBalanceCache(),
		currency: domain.CurrencyUSDC,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("service", "ledger").Logger(),
	}
}

// CreateAccount opens a new active account. walletAddress is optional.
func (s *Service) CreateAccount(ctx context.Context, displayName, walletAddress string) (*domain.Account, error) {
	account := &domain.Account{
		ID:            uuid.NewString(),
		DisplayName:   displayName,
		WalletAddress: NormalizeAddress(walletAddress),
		Active:        true,
		CreatedAt:     s.now(),
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, s.fail("create_account", account.ID, err)
	}

	s.log.Info().Str("account_id", account.ID).Msg("Account created")
	s.emit(events.AccountCreated, account.ID, map[string]interface{}{
		"display_name":   account.DisplayName,
		"wallet_address": account.WalletAddress,
	})
	return account, nil
}

// GetAccount returns an account by id
func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, domain.Persistence("get account", err)
	}
	return account, nil
}

// FindByWallet resolves the account linked to a wallet address
func (s *Service) FindByWallet(ctx context.Context, walletAddress string) (*domain.Account, error) {
	account, err := s.repo.FindAccountByWallet(ctx, walletAddress)
	if err != nil {
		return nil, domain.Persistence("find account by wallet", err)
	}
	return account, nil
}

// DeactivateAccount stops an account from accepting new mutations. Its history
// and balance stay readable. Deactivating twice is not an error.
func (s *Service) DeactivateAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var account *domain.Account
	err := s.mutate(ctx, "deactivate", []string{accountID}, func(repo *Repository, _ map[string]domain.WalletBalance) error {
		if _, err := repo.GetAccount(ctx, accountID); err != nil {
			return err
		}
		if err := repo.Deactivate(ctx, accountID, s.now()); err != nil {
			return err
		}
		var err error
		account, err = repo.GetAccount(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, s.fail("deactivate", accountID, err)
	}

	s.log.Info().Str("account_id", accountID).Msg("Account deactivated")
	s.emit(events.AccountDeactivated, accountID, nil)
	return account, nil
}

// LinkWallet associates a wallet address with an active account
func (s *Service) LinkWallet(ctx context.Context, accountID, walletAddress string) (*domain.Account, error) {
	if NormalizeAddress(walletAddress) == "" {
		return nil, s.fail("link_wallet", accountID, fmt.Errorf("wallet address is required: %w", domain.ErrInvalidAddress))
	}

	var account *domain.Account
	err := s.mutate(ctx, "link_wallet", []string{accountID}, func(repo *Repository, _ map[string]domain.WalletBalance) error {
		if err := requireActive(ctx, repo, accountID); err != nil {
			return err
		}
		if err := repo.SetWallet(ctx, accountID, walletAddress); err != nil {
			return err
		}
		var err error
		account, err = repo.GetAccount(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, s.fail("link_wallet", accountID, err)
	}

	s.emit(events.WalletLinked, accountID, map[string]interface{}{"wallet_address": account.WalletAddress})
	return account, nil
}

// Deposit appends a pending deposit. It only counts toward spendable balance
// once ConfirmDeposit is called by the payment collaborator.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, method string) (*domain.Transaction, error) {
	if err := requirePositive(amount); err != nil {
		return nil, s.fail("deposit", accountID, err)
	}

	t := s.newTransaction(accountID, domain.KindDeposit, amount, domain.StatusPending)
	t.Method = method

	err := s.mutate(ctx, "deposit", []string{accountID}, func(repo *Repository, _ map[string]domain.WalletBalance) error {
		if err := requireActive(ctx, repo, accountID); err != nil {
			return err
		}
		return repo.InsertTransaction(ctx, t)
	})
	if err != nil {
		return nil, s.fail("deposit", accountID, err)
	}

	s.appended(t)
	s.emit(events.DepositCreated, accountID, transactionData(t))
	return t, nil
}

// ConfirmDeposit settles a pending deposit as completed
func (s *Service) ConfirmDeposit(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.settleDeposit(ctx, transactionID, domain.StatusCompleted)
}

// FailDeposit settles a pending deposit as failed
func (s *Service) FailDeposit(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.settleDeposit(ctx, transactionID, domain.StatusFailed)
}

func (s *Service) settleDeposit(ctx context.Context, transactionID string, status domain.TransactionStatus) (*domain.Transaction, error) {
	op := "confirm_deposit"
	eventType := events.DepositConfirmed
	if status == domain.StatusFailed {
		op = "fail_deposit"
		eventType = events.DepositFailed
	}

	original, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, s.fail(op, "", err)
	}
	if original.Kind != domain.KindDeposit {
		return nil, s.fail(op, original.AccountID,
			fmt.Errorf("%s is a %s, only deposits settle: %w", transactionID, original.Kind, domain.ErrInvalidTransition))
	}

	var settled *domain.Transaction
	err = s.mutate(ctx, op, []string{original.AccountID}, func(repo *Repository, _ map[string]domain.WalletBalance) error {
		if err := repo.SettleTransaction(ctx, transactionID, status, s.now()); err != nil {
			return err
		}
		var err error
		settled, err = repo.GetTransaction(ctx, transactionID)
		return err
	})
	if err != nil {
		return nil, s.fail(op, original.AccountID, err)
	}

	metrics.RecordTransaction(string(settled.Kind), string(settled.Status))
	s.emit(eventType, settled.AccountID, transactionData(settled))
	return settled, nil
}

// Withdraw debits the account. It fails with domain.ErrInsufficientFunds, and
// appends nothing, when amount exceeds the spendable balance at admission.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Transaction, error) {
	if err := requirePositive(amount); err != nil {
		return nil, s.fail("withdraw", accountID, err)
	}

	t := s.newTransaction(accountID, domain.KindWithdraw, amount.Neg(), domain.StatusCompleted)

	err := s.mutate(ctx, "withdraw", []string{accountID}, func(repo *Repository, balances map[string]domain.WalletBalance) error {
		if err := requireActive(ctx, repo, accountID); err != nil {
			return err
		}
		if err := requireFunds(balances[accountID], amount); err != nil {
			return err
		}
		return repo.InsertTransaction(ctx, t)
	})
	if err != nil {
		return nil, s.fail("withdraw", accountID, err)
	}

	s.appended(t)
	s.emit(events.WithdrawalCompleted, accountID, transactionData(t))
	return t, nil
}

// RecordInvestment debits the account and opens the matching Investment in the
// same database transaction. Admission follows the withdrawal rule.
func (s *Service) RecordInvestment(ctx context.Context, accountID, propertyID string, amount, tokens decimal.Decimal) (*domain.Transaction, *domain.Investment, error) {
	if err := requirePositive(amount); err != nil {
		return nil, nil, s.fail("invest", accountID, err)
	}
	if err := domain.CheckPrecision(tokens, domain.TokenScale); err != nil {
		return nil, nil, s.fail("invest", accountID, fmt.Errorf("tokens: %w", err))
	}
	if !tokens.IsPositive() {
		return nil, nil, s.fail("invest", accountID, fmt.Errorf("tokens must be positive: %w", domain.ErrInvalidAmount))
	}

	property, err := s.lookupProperty(ctx, propertyID)
	if err != nil {
		return nil, nil, s.fail("invest", accountID, err)
	}

	t := s.newTransaction(accountID, domain.KindInvestment, amount.Neg(), domain.StatusCompleted)
	t.PropertyID = property.ID
	t.PropertyTitle = property.Title

	inv := &domain.Investment{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		PropertyID:     property.ID,
		TransactionID:  t.ID,
		TokensHeld:     tokens,
		InvestedAmount: amount,
		CurrentValue:   amount,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.CreatedAt,
	}

	err = s.mutate(ctx, "invest", []string{accountID}, func(repo *Repository, balances map[string]domain.WalletBalance) error {
		if err := requireActive(ctx, repo, accountID); err != nil {
			return err
		}
		if err := requireFunds(balances[accountID], amount); err != nil {
			return err
		}
		if err := repo.InsertTransaction(ctx, t); err != nil {
			return err
		}
		return repo.InsertInvestment(ctx, inv)
	})
	if err != nil {
		return nil, nil, s.fail("invest", accountID, err)
	}

	s.appended(t)
	data := transactionData(t)
	data["investment_id"] = inv.ID
	data["tokens"] = tokens.String()
	s.emit(events.InvestmentRecorded, accountID, data)
	return t, inv, nil
}

// RecordRentalIncome credits rental income for a property. Income has no
// funding precondition.
func (s *Service) RecordRentalIncome(ctx context.Context, accountID, propertyID string, amount decimal.Decimal) (*domain.Transaction, error) {
	if err := requirePositive(amount); err != nil {
		return nil, s.fail("rental_income", accountID, err)
	}

	property, err := s.lookupProperty(ctx, propertyID)
	if err != nil {
		return nil, s.fail("rental_income", accountID, err)
	}

	t := s.newTransaction(accountID, domain.KindRentalIncome, amount, domain.StatusCompleted)
	t.PropertyID = property.ID
	t.PropertyTitle = property.Title

	err = s.mutate(ctx, "rental_income", []string{accountID}, func(repo *Repository, _ map[string]domain.WalletBalance) error {
		if err := requireActive(ctx, repo, accountID); err != nil {
			return err
		}
		return repo.InsertTransaction(ctx, t)
	})
	if err != nil {
		return nil, s.fail("rental_income", accountID, err)
	}

	s.appended(t)
	s.emit(events.RentalIncomeRecorded, accountID, transactionData(t))
	return t, nil
}

// Transfer moves spendable balance between two accounts. Both rows are written
// in one database transaction and share an external reference.
func (s *Service) Transfer(ctx context.Context, fromAccountID, toAccountID string, amount decimal.Decimal) (debit, credit *domain.Transaction, err error) {
	if err := requirePositive(amount); err != nil {
		return nil, nil, s.fail("transfer", fromAccountID, err)
	}
	if fromAccountID == toAccountID {
		return nil, nil, s.fail("transfer", fromAccountID, domain.ErrSelfTransfer)
	}

	ref := uuid.NewString()
	debit = s.newTransaction(fromAccountID, domain.KindTransfer, amount.Neg(), domain.StatusCompleted)
	debit.ExternalRef = ref
	debit.Memo = "to:" + toAccountID
	credit = s.newTransaction(toAccountID, domain.KindTransfer, amount, domain.StatusCompleted)
	credit.ExternalRef = ref
	credit.Memo = "from:" + fromAccountID

	err = s.mutate(ctx, "transfer", []string{fromAccountID, toAccountID}, func(repo *Repository, balances map[string]domain.WalletBalance) error {
		if err := requireActive(ctx, repo, fromAccountID); err != nil {
			return err
		}
		if err := requireActive(ctx, repo, toAccountID); err != nil {
			return err
		}
		if err := requireFunds(balances[fromAccountID], amount); err != nil {
			return err
		}
		if err := repo.InsertTransaction(ctx, debit); err != nil {
			return err
		}
		return repo.InsertTransaction(ctx, credit)
	})
	if err != nil {
		return nil, nil, s.fail("transfer", fromAccountID, err)
	}

	s.appended(debit)
	s.appended(credit)
	s.emit(events.TransferCompleted, fromAccountID, transactionData(debit))
	s.emit(events.TransferCompleted, toAccountID, transactionData(credit))
	return debit, credit, nil
}

// Compensate appends a completed transaction that offsets a completed deposit,
// withdrawal or rental income. The original row is never touched, and a
// transaction can be compensated only once. Offsets that debit the account
// follow the withdrawal admission rule.
func (s *Service) Compensate(ctx context.Context, transactionID, reason string) (*domain.Transaction, error) {
	original, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, s.fail("compensate", "", err)
	}

	switch original.Kind {
	case domain.KindDeposit, domain.KindWithdraw, domain.KindRentalIncome:
	default:
		return nil, s.fail("compensate", original.AccountID,
			fmt.Errorf("%s transactions cannot be compensated: %w", original.Kind, domain.ErrInvalidTransition))
	}
	if original.Status != domain.StatusCompleted || original.Compensates != "" {
		return nil, s.fail("compensate", original.AccountID,
			fmt.Errorf("only completed original transactions can be compensated: %w", domain.ErrInvalidTransition))
	}

	offset := original.Amount.Neg()
	t := s.newTransaction(original.AccountID, original.Kind, offset, domain.StatusCompleted)
	t.Compensates = original.ID
	t.PropertyID = original.PropertyID
	t.PropertyTitle = original.PropertyTitle
	t.Memo = reason

	err = s.mutate(ctx, "compensate", []string{original.AccountID}, func(repo *Repository, balances map[string]domain.WalletBalance) error {
		if offset.IsNegative() {
			if err := requireFunds(balances[original.AccountID], offset.Neg()); err != nil {
				return err
			}
		}
		return repo.InsertTransaction(ctx, t)
	})
	if err != nil {
		return nil, s.fail("compensate", original.AccountID, err)
	}

	s.appended(t)
	s.log.Info().
		Str("account_id", t.AccountID).
		Str("compensates", original.ID).
		Str("amount", offset.String()).
		Str("reason", reason).
		Msg("Transaction compensated")
	s.emit(events.TransactionCompensated, t.AccountID, transactionData(t))
	return t, nil
}

// BalanceOf returns the account's wallet balance. It is served from the
// materialized view when present, otherwise folded from the log under the
// account's read lock.
func (s *Service) BalanceOf(ctx context.Context, accountID string) (domain.WalletBalance, error) {
	unlock := s.locks.rlock(accountID)
	defer unlock()

	if b, ok := s.cache.get(accountID); ok {
		return b, nil
	}

	b, err := s.foldFromLog(ctx, s.repo, accountID)
	if err != nil {
		return domain.WalletBalance{}, domain.Persistence("balance", err)
	}
	s.cache.put(b)
	return b, nil
}

// VerifyBalance refolds the log and compares it with the cached view. A
// mismatch is logged and counted, and the cache is replaced by the fold.
func (s *Service) VerifyBalance(ctx context.Context, accountID string) (balance domain.WalletBalance, drifted bool, err error) {
	unlock := s.locks.rlock(accountID)
	defer unlock()

	fresh, err := s.foldFromLog(ctx, s.repo, accountID)
	if err != nil {
		return domain.WalletBalance{}, false, domain.Persistence("verify balance", err)
	}

	if cached, ok := s.cache.get(accountID); ok && !cached.Equal(fresh) {
		drifted = true
		metrics.LedgerBalanceDriftTotal.Inc()
		s.log.Warn().
			Str("account_id", accountID).
			Str("cached_spendable", cached.Spendable.String()).
			Str("folded_spendable", fresh.Spendable.String()).
			Msg("Cached balance drifted from transaction log")
	}

	s.cache.put(fresh)
	return fresh, drifted, nil
}

// VerifyAll runs VerifyBalance for every account and returns how many were
// checked and how many had drifted.
func (s *Service) VerifyAll(ctx context.Context) (checked, drifted int, err error) {
	ids, err := s.repo.ListAccountIDs(ctx)
	if err != nil {
		return 0, 0, domain.Persistence("verify all", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return checked, drifted, err
		}
		_, d, err := s.VerifyBalance(ctx, id)
		if err != nil {
			return checked, drifted, err
		}
		checked++
		if d {
			drifted++
		}
	}
	return checked, drifted, nil
}

// DropCache discards every materialized balance. The next read refolds.
func (s *Service) DropCache() {
	s.cache.reset()
}

// ListTransactions returns an account's newest transactions first
func (s *Service) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, domain.Persistence("list transactions", err)
	}
	txs, err := s.repo.ListRecentTransactions(ctx, accountID, limit)
	if err != nil {
		return nil, domain.Persistence("list transactions", err)
	}
	return txs, nil
}

// ListInvestments returns every position held by an account
func (s *Service) ListInvestments(ctx context.Context, accountID string) ([]domain.Investment, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, domain.Persistence("list investments", err)
	}
	investments, err := s.repo.ListInvestments(ctx, accountID)
	if err != nil {
		return nil, domain.Persistence("list investments", err)
	}
	return investments, nil
}

// Holdings returns the account's positions together with its balance. Both
// are read under the account's read lock, so no mutation can land between
// them.
func (s *Service) Holdings(ctx context.Context, accountID string) (*domain.Holdings, error) {
	unlock := s.locks.rlock(accountID)
	defer unlock()

	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, domain.Persistence("holdings", err)
	}
	investments, err := s.repo.ListInvestments(ctx, accountID)
	if err != nil {
		return nil, domain.Persistence("holdings", err)
	}

	balance, ok := s.cache.get(accountID)
	if !ok {
		if balance, err = s.foldFromLog(ctx, s.repo, accountID); err != nil {
			return nil, domain.Persistence("holdings", err)
		}
		s.cache.put(balance)
	}
	return &domain.Holdings{Investments: investments, Balance: balance}, nil
}

// UpdateValuation records a new current value for a position, as reported by
// the valuation feed. It does not touch the transaction log.
func (s *Service) UpdateValuation(ctx context.Context, investmentID string, value decimal.Decimal) (*domain.Investment, error) {
	if err := domain.CheckAmount(value); err != nil {
		return nil, s.fail("valuation", "", err)
	}
	if value.IsNegative() {
		return nil, s.fail("valuation", "", fmt.Errorf("valuation must not be negative: %w", domain.ErrInvalidAmount))
	}

	if err := s.repo.UpdateValuation(ctx, investmentID, value, s.now()); err != nil {
		return nil, s.fail("valuation", "", err)
	}
	inv, err := s.repo.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, s.fail("valuation", "", err)
	}

	s.emit(events.ValuationUpdated, inv.AccountID, map[string]interface{}{
		"investment_id": inv.ID,
		"property_id":   inv.PropertyID,
		"current_value": inv.CurrentValue.String(),
	})
	return inv, nil
}

// mutate runs fn inside one database transaction while holding the write lock
// of every account in accountIDs. fn receives a repository bound to the
// transaction and balances folded inside it. On commit the cache is refreshed
// from a second fold taken in the same transaction.
func (s *Service) mutate(ctx context.Context, op string, accountIDs []string, fn func(repo *Repository, balances map[string]domain.WalletBalance) error) error {
	start := time.Now()
	unlock := s.locks.lockAll(accountIDs...)
	defer unlock()
	defer func() {
		metrics.LedgerMutationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var after []domain.WalletBalance
	err := database.WithTransactionContext(ctx, s.repo.DB(), func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)

		before := make(map[string]domain.WalletBalance, len(accountIDs))
		for _, id := range accountIDs {
			b, err := s.foldFromLog(ctx, repo, id)
			if err != nil {
				return err
			}
			before[id] = b
		}

		if err := fn(repo, before); err != nil {
			return err
		}

		after = after[:0]
		for _, id := range accountIDs {
			b, err := s.foldFromLog(ctx, repo, id)
			if err != nil {
				return err
			}
			after = append(after, b)
		}
		return nil
	})
	if err != nil {
		if !domain.IsDomainError(err) {
			for _, id := range accountIDs {
				s.cache.invalidate(id)
			}
		}
		return err
	}

	for _, b := range after {
		s.cache.put(b)
	}
	return nil
}

func (s *Service) foldFromLog(ctx context.Context, repo *Repository, accountID string) (domain.WalletBalance, error) {
	txs, err := repo.ListTransactions(ctx, accountID)
	if err != nil {
		return domain.WalletBalance{}, err
	}
	if len(txs) == 0 {
		// Distinguish "no history yet" from "no such account"
		if _, err := repo.GetAccount(ctx, accountID); err != nil {
			return domain.WalletBalance{}, err
		}
	}
	return Fold(accountID, txs), nil
}

func (s *Service) lookupProperty(ctx context.Context, propertyID string) (*domain.Property, error) {
	if s.catalog == nil {
		return nil, domain.ErrPropertyNotFound
	}
	property, err := s.catalog.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return property, nil
}

func (s *Service) newTransaction(accountID string, kind domain.TransactionKind, amount decimal.Decimal, status domain.TransactionStatus) *domain.Transaction {
	now := s.now()
	t := &domain.Transaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Amount:    amount,
		Currency:  s.currency,
		Status:    status,
		CreatedAt: now,
	}
	if status != domain.StatusPending {
		t.SettledAt = &now
	}
	return t
}

func (s *Service) appended(t *domain.Transaction) {
	metrics.RecordTransaction(string(t.Kind), string(t.Status))
	s.log.Debug().
		Str("account_id", t.AccountID).
		Str("transaction_id", t.ID).
		Str("kind", string(t.Kind)).
		Str("amount", t.Amount.String()).
		Str("status", string(t.Status)).
		Msg("Transaction appended")
}

// fail logs and counts a rejected mutation and tags store failures as
// domain.ErrPersistenceFailure.
func (s *Service) fail(op, accountID string, err error) error {
	reason := rejectionReason(err)
	metrics.RecordRejection(op, reason)

	event := s.log.Warn()
	if reason == "persistence" {
		event = s.log.Error()
	}
	event.Err(err).Str("operation", op).Str("account_id", accountID).Msg("Ledger operation rejected")

	return domain.Persistence(op, err)
}

func (s *Service) emit(eventType events.EventType, accountID string, data map[string]interface{}) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(eventType, "ledger", accountID, data)
}

func requirePositive(amount decimal.Decimal) error {
	if err := domain.CheckAmount(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%s: %w", amount.String(), domain.ErrInvalidAmount)
	}
	return nil
}

func requireFunds(balance domain.WalletBalance, amount decimal.Decimal) error {
	if amount.GreaterThan(balance.Spendable) {
		return fmt.Errorf("requested %s, spendable %s: %w",
			amount.String(), balance.Spendable.String(), domain.ErrInsufficientFunds)
	}
	return nil
}

func requireActive(ctx context.Context, repo *Repository, accountID string) error {
	account, err := repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.Active {
		return domain.ErrAccountInactive
	}
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrAccountInactive):
		return "account_inactive"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrPropertyNotFound):
		return "property_not_found"
	case errors.Is(err, domain.ErrTransactionNotFound), errors.Is(err, domain.ErrInvestmentNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSelfTransfer), errors.Is(err, domain.ErrWalletAlreadyLinked):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidAddress):
		return "invalid_address"
	}
	return "persistence"
}

func transactionData(t *domain.Transaction) map[string]interface{} {
	data := map[string]interface{}{
		"transaction_id": t.ID,
		"kind":           string(t.Kind),
		"amount":         t.Amount.String(),
		"status":         string(t.Status),
		"seq":            t.Seq,
	}
	if t.PropertyID != "" {
		data["property_id"] = t.PropertyID
	}
	if t.ExternalRef != "" {
		data["external_ref"] = t.ExternalRef
	}
	if t.Compensates != "" {
		data["compensates"] = t.Compensates
	}
	return data
}
