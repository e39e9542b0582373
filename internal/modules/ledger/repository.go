// Package ledger implements the append-only transaction ledger: accounts, the
// transaction log stored in ledger.db, investment positions and the service
// that serializes mutations per account.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository handles persistence of accounts, transactions and investments in ledger.db.
// Transactions are only ever inserted; the single permitted update is the
// pending -> completed|failed status transition, which the schema also enforces.
type Repository struct {
	ledgerDB *sql.DB // ledger.db connection, used to start transactions
	q        DBTX    // where queries run: ledgerDB or a bound *sql.Tx
	log      zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		q:        ledgerDB,
		log:      log.With().Str("repo", "ledger").Logger(),
	}
}

// WithTx returns a copy of the repository whose queries run inside tx
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{ledgerDB: r.ledgerDB, q: tx, log: r.log}
}

// DB returns the ledger connection
func (r *Repository) DB() *sql.DB {
	return r.ledgerDB
}

const transactionColumns = `seq, id, account_id, kind, amount, currency, status, property_id,
	property_title, external_ref, method, compensates, memo, created_at, settled_at`

// CreateAccount inserts a new account
func (r *Repository) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (id, display_name, wallet_address, active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, account.ID, account.DisplayName, nullString(account.WalletAddress), account.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrWalletAlreadyLinked
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetAccount returns the account or domain.ErrAccountNotFound
func (r *Repository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, display_name, wallet_address, active, created_at, deactivated_at
		FROM accounts WHERE id = ?
	`, id)
	return scanAccount(row)
}

// FindAccountByWallet returns the account linked to a wallet address (case-insensitive)
func (r *Repository) FindAccountByWallet(ctx context.Context, walletAddress string) (*domain.Account, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, display_name, wallet_address, active, created_at, deactivated_at
		FROM accounts WHERE wallet_address = ?
	`, NormalizeAddress(walletAddress))
	return scanAccount(row)
}

// SetWallet links a wallet address to an account
func (r *Repository) SetWallet(ctx context.Context, accountID, walletAddress string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE accounts SET wallet_address = ? WHERE id = ?`,
		nullString(NormalizeAddress(walletAddress)), accountID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrWalletAlreadyLinked
		}
		return fmt.Errorf("failed to link wallet: %w", err)
	}
	return requireRow(res, domain.ErrAccountNotFound)
}

// Deactivate marks the account inactive. Already inactive accounts are left unchanged.
func (r *Repository) Deactivate(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET active = 0, deactivated_at = ? WHERE id = ? AND active = 1
	`, at.UnixNano(), accountID)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}
	return nil
}

// ListAccountIDs returns the id of every account, active or not
func (r *Repository) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertTransaction appends a transaction and fills in its sequence number
func (r *Repository) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	var settledAt interface{}
	if t.SettledAt != nil {
		settledAt = t.SettledAt.UnixNano()
	}

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions (
			id, account_id, kind, amount, currency, status, property_id, property_title,
			external_ref, method, compensates, memo, created_at, settled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.AccountID, string(t.Kind), t.Amount.String(), string(t.Currency), string(t.Status),
		nullString(t.PropertyID), nullString(t.PropertyTitle), nullString(t.ExternalRef),
		nullString(t.Method), nullString(t.Compensates), nullString(t.Memo),
		t.CreatedAt.UnixNano(), settledAt,
	)
	if err != nil {
		if isUniqueViolation(err) && t.Compensates != "" {
			return fmt.Errorf("transaction %s already compensated: %w", t.Compensates, domain.ErrInvalidTransition)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction sequence: %w", err)
	}
	t.Seq = seq
	return nil
}

// SettleTransaction moves a pending transaction to completed or failed.
// Returns domain.ErrInvalidTransition if the transaction is no longer pending.
func (r *Repository) SettleTransaction(ctx context.Context, id string, status domain.TransactionStatus, at time.Time) error {
	if status != domain.StatusCompleted && status != domain.StatusFailed {
		return domain.ErrInvalidTransition
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE transactions SET status = ?, settled_at = ? WHERE id = ? AND status = 'pending'
	`, string(status), at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to settle transaction: %w", err)
	}
	return requireRow(res, domain.ErrInvalidTransition)
}

// GetTransaction returns a transaction by id or domain.ErrTransactionNotFound
func (r *Repository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	return t, err
}

// ListTransactions returns the full history of an account in append order
func (r *Repository) ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? ORDER BY seq ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

// ListRecentTransactions returns the newest transactions of an account first
func (r *Repository) ListRecentTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? ORDER BY seq DESC LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

// InsertInvestment records the position created by an investment transaction
func (r *Repository) InsertInvestment(ctx context.Context, inv *domain.Investment) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO investments (
			id, account_id, property_id, transaction_id, tokens_held,
			invested_amount, current_value, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID, inv.AccountID, inv.PropertyID, inv.TransactionID, inv.TokensHeld.String(),
		inv.InvestedAmount.String(), inv.CurrentValue.String(),
		inv.CreatedAt.UnixNano(), inv.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert investment: %w", err)
	}
	return nil
}

// GetInvestment returns an investment by id or domain.ErrInvestmentNotFound
func (r *Repository) GetInvestment(ctx context.Context, id string) (*domain.Investment, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, account_id, property_id, transaction_id, tokens_held,
		       invested_amount, current_value, created_at, updated_at
		FROM investments WHERE id = ?
	`, id)
	inv, err := scanInvestment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvestmentNotFound
	}
	return inv, err
}

// ListInvestments returns every position of an account, oldest first
func (r *Repository) ListInvestments(ctx context.Context, accountID string) ([]domain.Investment, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, property_id, transaction_id, tokens_held,
		       invested_amount, current_value, created_at, updated_at
		FROM investments WHERE account_id = ? ORDER BY created_at ASC, id ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query investments: %w", err)
	}
	defer rows.Close()

	investments := make([]domain.Investment, 0)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		investments = append(investments, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate investments: %w", err)
	}
	return investments, nil
}

// UpdateValuation sets the externally observed current value of a position
func (r *Repository) UpdateValuation(ctx context.Context, id string, value decimal.Decimal, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE investments SET current_value = ?, updated_at = ? WHERE id = ?
	`, value.String(), at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to update valuation: %w", err)
	}
	return requireRow(res, domain.ErrInvestmentNotFound)
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a             domain.Account
		wallet        sql.NullString
		active        int64
		createdAt     int64
		deactivatedAt sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.DisplayName, &wallet, &active, &createdAt, &deactivatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.WalletAddress = wallet.String
	a.Active = active == 1
	a.CreatedAt = fromUnixNano(createdAt)
	if deactivatedAt.Valid {
		t := fromUnixNano(deactivatedAt.Int64)
		a.DeactivatedAt = &t
	}
	return &a, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t                         domain.Transaction
		kind, status              string
		currency, amount          string
		propertyID, propertyTitle sql.NullString
		externalRef, method       sql.NullString
		compensates, memo         sql.NullString
		createdAt                 int64
		settledAt                 sql.NullInt64
	)
	err := row.Scan(&t.Seq, &t.ID, &t.AccountID, &kind, &amount, &currency, &status,
		&propertyID, &propertyTitle, &externalRef, &method, &compensates, &memo,
		&createdAt, &settledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q on transaction %s: %w", amount, t.ID, err)
	}
	t.Kind = domain.TransactionKind(kind)
	t.Status = domain.TransactionStatus(status)
	t.Currency = domain.Currency(currency)
	t.PropertyID = propertyID.String
	t.PropertyTitle = propertyTitle.String
	t.ExternalRef = externalRef.String
	t.Method = method.String
	t.Compensates = compensates.String
	t.Memo = memo.String
	t.CreatedAt = fromUnixNano(createdAt)
	if settledAt.Valid {
		s := fromUnixNano(settledAt.Int64)
		t.SettledAt = &s
	}
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

func scanInvestment(row rowScanner) (*domain.Investment, error) {
	var (
		inv                       domain.Investment
		tokens, invested, current string
		createdAt, updatedAt      int64
	)
	err := row.Scan(&inv.ID, &inv.AccountID, &inv.PropertyID, &inv.TransactionID,
		&tokens, &invested, &current, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan investment: %w", err)
	}

	if inv.TokensHeld, err = decimal.NewFromString(tokens); err != nil {
		return nil, fmt.Errorf("corrupt tokens on investment %s: %w", inv.ID, err)
	}
	if inv.InvestedAmount, err = decimal.NewFromString(invested); err != nil {
		return nil, fmt.Errorf("corrupt invested amount on investment %s: %w", inv.ID, err)
	}
	if inv.CurrentValue, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("corrupt current value on investment %s: %w", inv.ID, err)
	}
	inv.CreatedAt = fromUnixNano(createdAt)
	inv.UpdatedAt = fromUnixNano(updatedAt)
	return &inv, nil
}

// NormalizeAddress lower-cases a hex address so lookups are case-insensitive
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
