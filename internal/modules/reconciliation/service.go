// Package reconciliation compares on-chain token balances with the ledger.
// Reports are advisory: a drift is logged, counted and emitted as an event,
// but the ledger is never adjusted.
package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/aristath/brickvault/internal/clientdata"
	"github.com/aristath/brickvault/internal/clients/chainindexer"
	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/events"
	"github.com/aristath/brickvault/internal/metrics"
	"github.com/aristath/brickvault/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// MaxDecimals is the largest token precision accepted
const MaxDecimals = 36

// defaultFetchTimeout bounds a shared upstream lookup when Config.FetchTimeout is unset
const defaultFetchTimeout = 30 * time.Second

// BalanceFetcher reads raw token balances from the chain
type BalanceFetcher interface {
	TokenBalance(ctx context.Context, q chainindexer.BalanceQuery) (*big.Int, error)
}

// AccountResolver finds the ledger account being reconciled
type AccountResolver interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	FindByWallet(ctx context.Context, walletAddress string) (*domain.Account, error)
}

// LedgerBalances provides the ledger side of the comparison
type LedgerBalances interface {
	BalanceOf(ctx context.Context, accountID string) (domain.WalletBalance, error)
}

// EventEmitter publishes drift events
type EventEmitter interface {
	Emit(eventType events.EventType, module, accountID string, data map[string]interface{})
}

// Config holds reconciliation defaults. FetchTimeout bounds one shared
// upstream lookup including its retries.
type Config struct {
	DefaultChainID int64
	Tolerance      decimal.Decimal
	CacheTTL       time.Duration
	FetchTimeout   time.Duration
}

// Request describes one reconciliation. AccountID is optional when the wallet
// is linked to an account; Tolerance falls back to the configured default.
type Request struct {
	AccountID       string
	ContractAddress string
	WalletAddress   string
	ChainID         int64
	Decimals        int32
	Tolerance       *decimal.Decimal
}

// cachedBalance is what the snapshot cache holds for one lookup
type cachedBalance struct {
	RawBalance string    `json:"raw_balance"`
	ObservedAt time.Time `json:"observed_at"`
}

// Service reconciles on-chain balances against the ledger
type Service struct {
	fetcher  BalanceFetcher
	accounts AccountResolver
	balances LedgerBalances
	cache    *clientdata.Repository
	emitter  EventEmitter
	cfg      Config
	group    singleflight.Group
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a reconciliation service. cache and emitter may be nil.
func NewService(
	fetcher BalanceFetcher,
	accounts AccountResolver,
	balances LedgerBalances,
	cache *clientdata.Repository,
	emitter EventEmitter,
	cfg Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		fetcher:  fetcher,
		accounts: accounts,
		balances: balances,
		cache:    cache,
		emitter:  emitter,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("service", "reconciliation").Logger(),
	}
}

// Reconcile fetches the wallet's token balance and compares it with the
// account's spendable ledger balance. It never takes a ledger mutation lock.
func (s *Service) Reconcile(ctx context.Context, req Request) (*domain.ReconciliationReport, error) {
	req.ContractAddress = ledger.NormalizeAddress(req.ContractAddress)
	req.WalletAddress = ledger.NormalizeAddress(req.WalletAddress)
	if req.ContractAddress == "" || req.WalletAddress == "" {
		return nil, fmt.Errorf("contract and wallet address are required: %w", domain.ErrInvalidAddress)
	}
	if req.Decimals < 0 || req.Decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals %d outside 0..%d: %w", req.Decimals, MaxDecimals, domain.ErrInvalidAmount)
	}
	if req.ChainID == 0 {
		req.ChainID = s.cfg.DefaultChainID
	}
	tolerance := s.cfg.Tolerance
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}
	if err := domain.CheckAmount(tolerance); err != nil {
		return nil, fmt.Errorf("tolerance: %w", err)
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("tolerance must not be negative: %w", domain.ErrInvalidAmount)
	}

	account, err := s.resolveAccount(ctx, req)
	if err != nil {
		return nil, err
	}

	query := chainindexer.BalanceQuery{
		ChainID:         req.ChainID,
		ContractAddress: req.ContractAddress,
		WalletAddress:   req.WalletAddress,
	}
	observed, err := s.observe(ctx, query)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	raw, ok := new(big.Int).SetString(observed.RawBalance, 10)
	if !ok {
		return nil, domain.Persistence("reconcile", fmt.Errorf("cached raw balance %q is not an integer", observed.RawBalance))
	}

	ledgerBalance, err := s.balances.BalanceOf(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	onChain := ToDecimal(raw, req.Decimals)
	delta := onChain.Sub(ledgerBalance.Spendable)
	report := &domain.ReconciliationReport{
		Snapshot: domain.OnChainBalanceSnapshot{
			ObservedAt:      observed.ObservedAt,
			ContractAddress: req.ContractAddress,
			WalletAddress:   req.WalletAddress,
			RawBalance:      observed.RawBalance,
			ChainID:         req.ChainID,
			Decimals:        req.Decimals,
		},
		AccountID:       account.ID,
		OnChainBalance:  onChain,
		LedgerBalance:   ledgerBalance.Spendable,
		Delta:           delta,
		Tolerance:       tolerance,
		WithinTolerance: delta.Abs().LessThanOrEqual(tolerance),
	}

	if report.WithinTolerance {
		metrics.RecordReconciliation("within_tolerance")
		s.log.Debug().
			Str("account_id", account.ID).
			Str("delta", delta.String()).
			Msg("On-chain balance matches ledger")
		return report, nil
	}

	metrics.RecordReconciliation("drift")
	s.log.Warn().
		Str("account_id", account.ID).
		Str("wallet", req.WalletAddress).
		Str("on_chain", onChain.String()).
		Str("ledger", ledgerBalance.Spendable.String()).
		Str("delta", delta.String()).
		Msg("On-chain balance drifted from ledger")
	if s.emitter != nil {
		s.emitter.Emit(events.ReconciliationDrift, "reconciliation", account.ID, map[string]interface{}{
			"wallet_address":   req.WalletAddress,
			"contract_address": req.ContractAddress,
			"chain_id":         req.ChainID,
			"on_chain_balance": onChain.String(),
			"ledger_balance":   ledgerBalance.Spendable.String(),
			"delta":            delta.String(),
		})
	}
	return report, nil
}

// ToDecimal converts a raw integer amount in a token's smallest unit to whole
// tokens without loss.
func ToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

func (s *Service) resolveAccount(ctx context.Context, req Request) (*domain.Account, error) {
	if req.AccountID != "" {
		return s.accounts.GetAccount(ctx, req.AccountID)
	}
	return s.accounts.FindByWallet(ctx, req.WalletAddress)
}

// observe returns the raw balance, from the snapshot cache when fresh.
// Concurrent identical lookups share one upstream request.
func (s *Service) observe(ctx context.Context, q chainindexer.BalanceQuery) (*cachedBalance, error) {
	key := lookupKey(q)
	if cached := s.fromCache(ctx, key); cached != nil {
		metrics.RecordIndexerRequest("cache_hit")
		return cached, nil
	}

	// The flight is shared, so it must not die with whichever caller started it
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(flightCtx, s.fetchTimeout())
		defer cancel()

		raw, err := s.fetcher.TokenBalance(fetchCtx, q)
		if err != nil {
			return nil, err
		}
		observed := &cachedBalance{RawBalance: raw.String(), ObservedAt: s.now()}
		s.toCache(fetchCtx, key, observed)
		return observed, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cachedBalance), nil
	case <-ctx.Done():
		return nil, &domain.ExternalError{
			Kind:     domain.ErrReconciliationUnavailable,
			Provider: chainindexer.ProviderName,
			Attempted: map[string]string{
				"chain_id":         strconv.FormatInt(q.ChainID, 10),
				"contract_address": q.ContractAddress,
				"wallet_address":   q.WalletAddress,
			},
			Cause: ctx.Err(),
		}
	}
}

func (s *Service) fetchTimeout() time.Duration {
	if s.cfg.FetchTimeout > 0 {
		return s.cfg.FetchTimeout
	}
	return defaultFetchTimeout
}

func (s *Service) fromCache(ctx context.Context, key string) *cachedBalance {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.GetIfFresh(ctx, clientdata.TableChainBalances, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to read balance cache")
		return nil
	}
	if data == nil {
		return nil
	}

	var cached cachedBalance
	if err := json.Unmarshal(data, &cached); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached balance")
		return nil
	}
	return &cached
}

func (s *Service) toCache(ctx context.Context, key string, observed *cachedBalance) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Store(ctx, clientdata.TableChainBalances, key, observed, s.cfg.CacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache balance")
	}
}

func (s *Service) recordFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrReconciliationUnavailable):
		metrics.RecordReconciliation("unavailable")
	case errors.Is(err, domain.ErrInvalidExternalResponse):
		metrics.RecordReconciliation("invalid_response")
	}
}

func lookupKey(q chainindexer.BalanceQuery) string {
	return fmt.Sprintf("%d:%s:%s", q.ChainID, q.ContractAddress, q.WalletAddress)
}
