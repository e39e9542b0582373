package reconciliation

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/brickvault/internal/clientdata"
	"github.com/aristath/brickvault/internal/clients/chainindexer"
	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/events"
	testingpkg "github.com/aristath/brickvault/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	calls   atomic.Int32
	raw     string
	err     error
	release chan struct{}
}

func (f *stubFetcher) TokenBalance(ctx context.Context, _ chainindexer.BalanceQuery) (*big.Int, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := new(big.Int).SetString(f.raw, 10)
	return raw, nil
}

type stubAccounts struct{}

func (stubAccounts) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	if id != "acc-1" {
		return nil, domain.ErrAccountNotFound
	}
	return &domain.Account{ID: "acc-1", WalletAddress: "0xwallet", Active: true}, nil
}

func (stubAccounts) FindByWallet(_ context.Context, wallet string) (*domain.Account, error) {
	if wallet != "0xwallet" {
		return nil, domain.ErrAccountNotFound
	}
	return &domain.Account{ID: "acc-1", WalletAddress: "0xwallet", Active: true}, nil
}

type stubBalances struct {
	spendable decimal.Decimal
}

func (b stubBalances) BalanceOf(_ context.Context, accountID string) (domain.WalletBalance, error) {
	return domain.WalletBalance{AccountID: accountID, Spendable: b.spendable}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.EventType
}

func (r *recordingEmitter) Emit(eventType events.EventType, _, _ string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func setupService(t *testing.T, fetcher *stubFetcher, spendable string) (*Service, *recordingEmitter) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)

	emitter := &recordingEmitter{}
	s := NewService(fetcher, stubAccounts{}, stubBalances{spendable: decimal.RequireFromString(spendable)},
		clientdata.NewRepository(db.Conn()), emitter, Config{
			DefaultChainID: 1,
			Tolerance:      decimal.RequireFromString("0.01"),
			CacheTTL:       time.Minute,
		}, zerolog.Nop())
	return s, emitter
}

func TestToDecimal(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	assert.True(t, ToDecimal(oneEther, 18).Equal(decimal.NewFromInt(1)))

	tiny := big.NewInt(1)
	assert.Equal(t, "0.000000000000000000000000000000000001", ToDecimal(tiny, 36).String())

	assert.Equal(t, "1234", ToDecimal(big.NewInt(1234), 0).String())

	huge, _ := new(big.Int).SetString("123456789012345678901234567890123456789", 10)
	assert.Equal(t, "123.456789012345678901234567890123456789", ToDecimal(huge, 36).String())
}

func TestReconcile_WithinTolerance(t *testing.T) {
	fetcher := &stubFetcher{raw: "1500000000000000000000"}
	s, emitter := setupService(t, fetcher, "1500")

	report, err := s.Reconcile(context.Background(), Request{
		ContractAddress: "0xTOKEN",
		WalletAddress:   " 0xWallet ",
		Decimals:        18,
	})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", report.AccountID)
	assert.True(t, report.WithinTolerance)
	assert.True(t, report.Delta.IsZero())
	assert.Equal(t, "1500", report.OnChainBalance.String())
	assert.Equal(t, int64(1), report.Snapshot.ChainID)
	assert.Equal(t, "0xtoken", report.Snapshot.ContractAddress)
	assert.Empty(t, emitter.events)
}

func TestReconcile_DriftIsReportedNotCorrected(t *testing.T) {
	fetcher := &stubFetcher{raw: "99000000"}
	s, emitter := setupService(t, fetcher, "100")

	report, err := s.Reconcile(context.Background(), Request{
		AccountID:       "acc-1",
		ContractAddress: "0xtoken",
		WalletAddress:   "0xwallet",
		ChainID:         137,
		Decimals:        6,
	})
	require.NoError(t, err)
	assert.False(t, report.WithinTolerance)
	assert.Equal(t, "-1", report.Delta.String())
	assert.Equal(t, []events.EventType{events.ReconciliationDrift}, emitter.events)

	// A wider caller tolerance accepts the same delta
	tolerance := decimal.NewFromInt(2)
	report, err = s.Reconcile(context.Background(), Request{
		AccountID:       "acc-1",
		ContractAddress: "0xtoken",
		WalletAddress:   "0xwallet",
		ChainID:         137,
		Decimals:        6,
		Tolerance:       &tolerance,
	})
	require.NoError(t, err)
	assert.True(t, report.WithinTolerance)
	assert.Equal(t, "2", report.Tolerance.String())
}

func TestReconcile_ZeroBalance(t *testing.T) {
	fetcher := &stubFetcher{raw: "0"}
	s, _ := setupService(t, fetcher, "0")

	report, err := s.Reconcile(context.Background(), Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet", Decimals: 18})
	require.NoError(t, err)
	assert.True(t, report.OnChainBalance.IsZero())
	assert.True(t, report.WithinTolerance)
}

func TestReconcile_UsesSnapshotCache(t *testing.T) {
	fetcher := &stubFetcher{raw: "5"}
	s, _ := setupService(t, fetcher, "5")
	ctx := context.Background()
	req := Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet", Decimals: 0}

	for i := 0; i < 3; i++ {
		_, err := s.Reconcile(ctx, req)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())

	// A different chain is a different lookup
	req.ChainID = 10
	_, err := s.Reconcile(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestReconcile_CollapsesConcurrentLookups(t *testing.T) {
	fetcher := &stubFetcher{raw: "7", release: make(chan struct{})}
	s, _ := setupService(t, fetcher, "7")
	s.cache = nil

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Reconcile(context.Background(), Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet"})
			errs <- err
		}()
	}

	// Let every caller join the in-flight lookup before it completes
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestReconcile_SharedLookupSurvivesFirstCallerCancel(t *testing.T) {
	fetcher := &stubFetcher{raw: "7", release: make(chan struct{})}
	s, _ := setupService(t, fetcher, "7")
	s.cache = nil
	req := Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Reconcile(firstCtx, req)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := s.Reconcile(context.Background(), req)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, domain.ErrReconciliationUnavailable)

	close(fetcher.release)
	assert.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestReconcile_SharedLookupIsBounded(t *testing.T) {
	fetcher := &stubFetcher{raw: "7", release: make(chan struct{})}
	s, _ := setupService(t, fetcher, "7")
	s.cache = nil
	s.cfg.FetchTimeout = 20 * time.Millisecond

	_, err := s.Reconcile(context.Background(), Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReconcile_Validation(t *testing.T) {
	fetcher := &stubFetcher{raw: "1"}
	s, _ := setupService(t, fetcher, "0")
	ctx := context.Background()

	_, err := s.Reconcile(ctx, Request{WalletAddress: "0xwallet"})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = s.Reconcile(ctx, Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet", Decimals: 37})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = s.Reconcile(ctx, Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet", Decimals: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	negative := decimal.NewFromInt(-1)
	_, err = s.Reconcile(ctx, Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet", Tolerance: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	precise := decimal.RequireFromString("1e-30")
	_, err = s.Reconcile(ctx, Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet", Tolerance: &precise})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = s.Reconcile(ctx, Request{ContractAddress: "0xtoken", WalletAddress: "0xunlinked"})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.Reconcile(ctx, Request{AccountID: "acc-9", ContractAddress: "0xtoken", WalletAddress: "0xwallet"})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	assert.Zero(t, fetcher.calls.Load())
}

func TestReconcile_ExternalFailuresPassThrough(t *testing.T) {
	unavailable := &domain.ExternalError{Kind: domain.ErrReconciliationUnavailable, Provider: chainindexer.ProviderName}
	fetcher := &stubFetcher{err: unavailable}
	s, _ := setupService(t, fetcher, "0")

	_, err := s.Reconcile(context.Background(), Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet"})
	assert.ErrorIs(t, err, domain.ErrReconciliationUnavailable)

	// Failures are not cached
	fetcher.err = nil
	fetcher.raw = "0"
	_, err = s.Reconcile(context.Background(), Request{ContractAddress: "0xtoken", WalletAddress: "0xwallet"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}
